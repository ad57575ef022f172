package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/epub-reader/internal/config"
	"github.com/yuanying/epub-reader/internal/syncclient"
)

func newSyncCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Exchange reading positions with the sync server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			prefs, err := a.store.LoadSettings(ctx)
			if err != nil {
				return err
			}
			res, err := syncclient.New(a.store, prefs, syncclient.WithLogger(a.logger)).Sync(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "uploaded: %d %s\n", len(res.Uploaded), strings.Join(res.Uploaded, ", "))
			fmt.Fprintf(out, "downloaded: %d %s\n", len(res.Downloaded), strings.Join(res.Downloaded, ", "))
			return nil
		},
	}
}

func newRegisterCmd(flags *config.Flags) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Obtain a user id from the sync server and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			prefs, err := a.store.LoadSettings(ctx)
			if err != nil {
				return err
			}
			if server != "" {
				if err := prefs.Set("server_address", server); err != nil {
					return err
				}
			}
			id, err := syncclient.New(a.store, prefs, syncclient.WithLogger(a.logger)).Generate(ctx)
			if err != nil {
				return err
			}
			if err := prefs.Set("uuid", id); err != nil {
				return err
			}
			if err := a.store.SaveSettings(ctx, prefs); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Sync server address to save before registering")
	return cmd
}
