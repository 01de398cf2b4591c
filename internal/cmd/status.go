package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/marcin-skalski/review-radar/internal/badge"
)

// StatusCmd prints the badge mirrored to the status file, for tmux or
// waybar style status bars. It works without the daemon.
type StatusCmd struct {
	Format string `help:"Output format: text or json" enum:"text,json" default:"text"`
}

func (s *StatusCmd) Run(cli *CLI) error {
	st, err := badge.ReadFile(cli.cfg.StatusFile)
	if err != nil {
		fmt.Print("?")
		return nil
	}

	if s.Format == "json" {
		return json.NewEncoder(os.Stdout).Encode(st)
	}
	fmt.Print(st.Text)
	return nil
}
