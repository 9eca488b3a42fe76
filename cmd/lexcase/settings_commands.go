package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lexcase/internal/store"
)

var settingKeys = []string{
	store.SettingAPIKey,
	store.SettingPreferredModel,
	store.SettingRateLimitPerMin,
	store.SettingTheme,
}

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change stored application settings",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Show one setting or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				key, err := settingKey(args[0])
				if err != nil {
					return err
				}
				value, ok, err := st.Setting(cmd.Context(), key)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "%s is not set\n", key)
					return nil
				}
				fmt.Fprintln(out, displaySetting(key, value))
				return nil
			}

			app, err := st.LoadAppSettings(cmd.Context())
			if err != nil {
				return err
			}
			key, err := st.LoadAPIKey(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{store.SettingAPIKey, displaySetting(store.SettingAPIKey, key)},
				{store.SettingPreferredModel, app.PreferredModel},
				{store.SettingRateLimitPerMin, strconv.Itoa(app.RateLimitPerMin)},
				{store.SettingTheme, app.Theme},
			}
			fmt.Fprint(out, renderTable([]tableColumn{col("Key"), wrapCol("Value", 48)}, rows))
			fmt.Fprintln(out)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting (use an empty value to clear it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := settingKey(args[0])
			if err != nil {
				return err
			}
			value := strings.TrimSpace(args[1])
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if key == store.SettingRateLimitPerMin && value != "" {
				if n, err := strconv.Atoi(value); err != nil || n <= 0 {
					return fmt.Errorf("%s must be a positive integer, got %q", key, value)
				}
			}
			if value == "" {
				if err := st.DeleteSetting(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", key)
				return nil
			}
			if err := st.SetSetting(cmd.Context(), key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", key)
			return nil
		},
	}

	settingsCmd.AddCommand(getCmd, setCmd)
	return settingsCmd
}

func settingKey(raw string) (string, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	if !slices.Contains(settingKeys, key) {
		return "", fmt.Errorf("unknown setting %q (use %s)", raw, strings.Join(settingKeys, ", "))
	}
	return key, nil
}

// displaySetting masks secrets.
func displaySetting(key, value string) string {
	if key != store.SettingAPIKey {
		return value
	}
	return maskSecret(value)
}

func maskSecret(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
