package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

type services struct {
	retriever ports.MemoryRetriever
	assembler ports.ContextAssembler
	ingestor  ports.MessageIngestor
	rooms     ports.RoomManager
}

type openFunc func(ctx context.Context) (services, func(), error)

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "memctl",
		Short:         "Query and feed the hybrid room memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRetrieveCmd(open),
		newContextCmd(open),
		newIngestCmd(open),
		newRoomCmd(open),
	)
	return root
}

func withServices(cmd *cobra.Command, open openFunc, fn func(context.Context, services) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	out, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func newRetrieveCmd(open openFunc) *cobra.Command {
	var (
		userID  string
		roomIDs []string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "retrieve QUERY",
		Short: "Rank memories across rooms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc services) (any, error) {
				results, err := svc.retriever.Retrieve(ctx, domain.RetrievalRequest{
					Query:   strings.Join(args, " "),
					RoomIDs: roomIDs,
					UserID:  userID,
					Limit:   limit,
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{"results": results}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner of the memories")
	cmd.Flags().StringSliceVarP(&roomIDs, "room", "r", nil, "room to search (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func newContextCmd(open openFunc) *cobra.Command {
	var (
		userID string
		roomID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "context [QUERY]",
		Short: "Build context blocks for a room and its ancestors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc services) (any, error) {
				blocks, err := svc.assembler.BuildContextBlocks(ctx, roomID, userID, strings.Join(args, " "), limit)
				if err != nil {
					return nil, err
				}
				return map[string]any{"blocks": blocks}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner of the memories")
	cmd.Flags().StringVarP(&roomID, "room", "r", "", "room the conversation happens in")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum blocks")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func newIngestCmd(open openFunc) *cobra.Command {
	var (
		userID string
		roomID string
	)
	cmd := &cobra.Command{
		Use:   "ingest CONTENT",
		Short: "Store a message and schedule it for indexing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc services) (any, error) {
				return svc.ingestor.Ingest(ctx, domain.Message{
					RoomID:  roomID,
					UserID:  userID,
					Content: strings.Join(args, " "),
				})
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "message author")
	cmd.Flags().StringVarP(&roomID, "room", "r", "", "room the message belongs to")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func newRoomCmd(open openFunc) *cobra.Command {
	room := &cobra.Command{
		Use:   "room",
		Short: "Manage the room hierarchy",
	}

	var (
		parentID string
		name     string
	)
	put := &cobra.Command{
		Use:   "put ROOM_ID",
		Short: "Create or update a room and its parent link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc services) (any, error) {
				return svc.rooms.PutRoom(ctx, domain.Room{ID: args[0], ParentID: parentID, DisplayName: name})
			})
		},
	}
	put.Flags().StringVarP(&parentID, "parent", "p", "", "parent room id")
	put.Flags().StringVar(&name, "name", "", "display name")

	room.AddCommand(put)
	return room
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
