package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	models "github.com/CodeAndHammer/learngames/internal/models"
	session "github.com/CodeAndHammer/learngames/internal/session"
)

type opener func() (*models.App, func(), error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "gamesctl",
		Short: "Parent controls for the learning games server",
		Long: `gamesctl inspects and resets the state the learning games keep per
profile: action locks, math progress and rewards. It reads the same
environment (.env, STORE_DRIVER, STORE_DSN, ...) as the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().String("profile", "", "learner profile (defaults to DEFAULT_PROFILE)")

	root.AddCommand(newLockCmd(open), newMathCmd(open), newProgressCmd(open), newReportCmd(open))
	return root
}

// withProfile opens the app, resolves --profile and runs fn.
func withProfile(cmd *cobra.Command, open opener, fn func(app *models.App, prof *models.Profile) error) error {
	app, closeFn, err := open()
	if err != nil {
		return err
	}
	defer closeFn()

	raw, _ := cmd.Flags().GetString("profile")
	if raw == "" {
		raw = app.Config.DefaultProfile
	}
	id, ok := session.NormalizeProfile(raw)
	if !ok {
		return fmt.Errorf("invalid profile %q", raw)
	}
	return fn(app, app.NewProfile(id))
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", errors.New("--" + name + " is required")
	}
	return v, nil
}
