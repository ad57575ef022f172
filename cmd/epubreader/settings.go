package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yuanying/epub-reader/internal/config"
	"github.com/yuanying/epub-reader/internal/settings"
)

func newSettingsCmd(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change reader preferences",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			prefs, err := a.store.LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range settings.Keys {
				v, _ := prefs.Get(k)
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, v)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "set key=value...",
		Short: "Change settings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			for _, arg := range args {
				k, v, err := settings.ParseAssignment(arg)
				if err != nil {
					return err
				}
				if err := prefs.Set(k, v); err != nil {
					return err
				}
			}
			return a.store.SaveSettings(ctx, prefs)
		},
	})
	return cmd
}
