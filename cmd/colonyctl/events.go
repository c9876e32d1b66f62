package main

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/danmuck/colonyctl/internal/protocol"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the event catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSENDERS\tMIN\tLAYOUT")
			for _, spec := range schema.Default().All() {
				layout := lo.Map(spec.Structure, func(f schema.FieldSpec, _ int) string {
					return fmt.Sprintf("%s %s@%d", f.Name, f.Type, f.Offset)
				})
				if len(layout) == 0 {
					layout = []string{"-"}
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					spec.ID, spec.Name, spec.Permissions, spec.ExpectedMinSize, strings.Join(layout, ", "))
			}
			return w.Flush()
		},
	}
}

func newDecodeCmd() *cobra.Command {
	var roleName string
	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode one hex encoded message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(strings.Join(strings.Fields(strings.Join(args, "")), ""))
			if err != nil {
				return fmt.Errorf("decode hex: %w", err)
			}
			codec := protocol.NewCodec(schema.Default())
			msg, err := codec.Decode(raw)
			if err != nil {
				return err
			}
			spec, _ := codec.Registry().Lookup(msg.EventID)
			if roleName != "" {
				role, err := schema.ParseRole(roleName)
				if err != nil {
					return err
				}
				if !schema.IsPermitted(spec, role) {
					return fmt.Errorf("%w: %s may not send %s", protocol.ErrPermissionDenied, role, spec)
				}
			}

			out := cmd.OutOrStdout()
			sender := fmt.Sprintf("%d", msg.SenderID)
			if msg.SenderID == protocol.ServerSenderID {
				sender = "server"
			}
			fmt.Fprintf(out, "event:  %s\n", spec)
			fmt.Fprintf(out, "sender: %s\n", sender)
			for _, name := range slices.Sorted(maps.Keys(msg.Fields)) {
				fmt.Fprintf(out, "  %s = %s\n", name, msg.Fields[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&roleName, "role", "", "also check the origin role may send this event (server|owner|guest)")
	return cmd
}
