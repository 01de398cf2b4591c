package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

// SendCmd posts an arbitrary action to the daemon and prints the response.
type SendCmd struct {
	Action  string `arg:"" help:"Bus action, e.g. getBadge"`
	Payload string `help:"JSON payload" short:"p"`
}

func (s *SendCmd) Run(cli *CLI) error {
	var payload any
	if s.Payload != "" {
		if !json.Valid([]byte(s.Payload)) {
			return fmt.Errorf("payload is not valid JSON")
		}
		payload = json.RawMessage(s.Payload)
	}

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := cli.client().Send(ctx, s.Action, payload)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
