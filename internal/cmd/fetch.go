package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/marcin-skalski/review-radar/internal/daemon"
	"github.com/marcin-skalski/review-radar/internal/fetcher"
	"github.com/marcin-skalski/review-radar/internal/github"
)

// FetchCmd triggers a fetch in the running daemon.
type FetchCmd struct {
	Category string `arg:"" optional:"" help:"Category to fetch" enum:"assigned,authored,merged" default:"assigned"`
	Force    bool   `help:"Bypass the cache and skip notifications" short:"f"`
}

func (f *FetchCmd) Run(cli *CLI) error {
	c, _ := github.ParseCategory(f.Category)

	var res fetcher.Result
	if err := cli.send(daemon.FetchAction(c), daemon.FetchRequest{Force: f.Force, UseCache: !f.Force}, &res); err != nil {
		return err
	}

	printPRs(c, res.PRs)
	return nil
}

// ListCmd prints what the daemon has stored, without fetching.
type ListCmd struct {
	Category string `arg:"" optional:"" help:"Category to list" enum:"assigned,authored,merged" default:"assigned"`
}

func (l *ListCmd) Run(cli *CLI) error {
	c, _ := github.ParseCategory(l.Category)

	var view daemon.BucketView
	if err := cli.send(daemon.GetAction(c), nil, &view); err != nil {
		return err
	}

	printPRs(c, view.PRs)
	return nil
}

func printPRs(c github.Category, prs []github.PullRequest) {
	if len(prs) == 0 {
		fmt.Printf("No %s pull requests.\n", c)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NEW\tREF\tAUTHOR\tSTATUS\tTITLE")
	for _, pr := range prs {
		mark := ""
		if pr.IsNew {
			mark = "*"
		}
		status := string(pr.ReviewStatus)
		if c == github.CategoryAuthored {
			status = string(pr.AuthorReviewStatus)
		}
		if c == github.CategoryMerged {
			status = string(pr.Type)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, pr.Ref(), pr.Author.Login, status, pr.Title)
	}
	w.Flush()
}
