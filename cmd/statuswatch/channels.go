package main

import (
	"fmt"
	"os/user"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"statuswatch/internal/storage"
	"statuswatch/internal/transport"
)

func newChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Inspect or edit the tenant notification chats",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered notification chats",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, st storage.Store, _ []string) error {
				chans, err := st.Channels(cmd.Context())
				if err != nil {
					return err
				}
				tenants := lo.Keys(chans)
				slices.Sort(tenants)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TENANT\tCHAT\tTHREAD")
				for _, t := range tenants {
					fmt.Fprintf(w, "%d\t%d\t%d\n", t, chans[t].ChatID, chans[t].ThreadID)
				}
				return w.Flush()
			}),
		},
		&cobra.Command{
			Use:   "set <tenant> <chat> [thread]",
			Short: "Register the notification chat of a tenant",
			Args:  cobra.RangeArgs(2, 3),
			RunE: withStore(func(cmd *cobra.Command, st storage.Store, args []string) error {
				tenant, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid tenant %q", args[0])
				}
				chat, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil || chat == 0 {
					return fmt.Errorf("invalid chat %q", args[1])
				}
				target := transport.ChatTarget{ChatID: chat}
				if len(args) == 3 {
					if target.ThreadID, err = strconv.Atoi(args[2]); err != nil {
						return fmt.Errorf("invalid thread %q", args[2])
					}
				}
				prev, had, err := st.SetChannel(cmd.Context(), tenant, target)
				if err != nil {
					return err
				}
				if err := st.AppendAudit(cmd.Context(), auditEntry(tenant, "set_channel", target)); err != nil {
					return err
				}
				if had {
					fmt.Fprintf(cmd.OutOrStdout(), "tenant %d: chat %d thread %d (was chat %d thread %d)\n",
						tenant, target.ChatID, target.ThreadID, prev.ChatID, prev.ThreadID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "tenant %d: chat %d thread %d\n", tenant, target.ChatID, target.ThreadID)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "remove <tenant>",
			Short: "Remove the notification chat of a tenant",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, st storage.Store, args []string) error {
				tenant, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid tenant %q", args[0])
				}
				removed, err := st.RemoveChannel(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("tenant %d has no notification chat", tenant)
				}
				if err := st.AppendAudit(cmd.Context(), auditEntry(tenant, "remove_channel", transport.ChatTarget{})); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenant %d removed\n", tenant)
				return nil
			}),
		},
	)
	return cmd
}

func withStore(fn func(cmd *cobra.Command, st storage.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(cmd, st, args)
	}
}

func auditEntry(tenant int64, action string, t transport.ChatTarget) storage.AuditEntry {
	e := storage.AuditEntry{
		At:       time.Now().UTC(),
		Tenant:   tenant,
		Action:   action,
		ChatID:   t.ChatID,
		ThreadID: t.ThreadID,
		Source:   "cli",
	}
	if u, err := user.Current(); err == nil {
		e.ActorUsername = u.Username
	}
	return e
}
