package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"memberhub/internal/client"
	"memberhub/internal/gitops"
	"memberhub/internal/members"
	"memberhub/internal/report"
)

type options struct {
	url   string
	token string
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load()
	opts := &options{}

	root := &cobra.Command{
		Use:           "memberctl",
		Short:         "Command line client for memberhub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", envOr("MEMBERCTL_URL", "http://localhost:8080"), "memberhub base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("MEMBERCTL_TOKEN"), "bearer token (or MEMBERCTL_TOKEN)")

	root.AddCommand(
		newLoginCmd(opts),
		newWhoamiCmd(opts),
		newMembersCmd(opts),
		newCollectorsCmd(opts),
		newReportCmd(opts),
		newGitCmd(opts),
		newAnalyzeCmd(opts),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *options) client() *client.Client {
	return client.New(o.url, o.token)
}

func newLoginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login MEMBER_NUMBER",
		Short: "Sign in with a member number and print the access token",
		Long: `Sign in with a member number. The account is created on first use.

Examples:
  # Sign in and export the token for later commands
  export MEMBERCTL_TOKEN=$(memberctl login TM10003)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.client().Login(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.AccessToken)
			return nil
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, roles and visible tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := opts.client().Me(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "User:    %s (%s)\n", me.Email, me.MemberNumber)
			fmt.Fprintf(w, "Role:    %s\n", me.PrimaryRole)
			fmt.Fprintf(w, "Roles:   %s\n", strings.Join(me.Roles, ", "))
			fmt.Fprintf(w, "Tabs:    %s\n", strings.Join(me.Tabs, ", "))
			if me.Error != "" {
				fmt.Fprintf(w, "Warning: %s\n", me.Error)
			}
			return nil
		},
	}
}

func newMembersCmd(opts *options) *cobra.Command {
	var collector string
	var interactive bool
	cmd := &cobra.Command{
		Use:   "members [SEARCH]",
		Short: "Search members by name, number or collector",
		Long: `Search members by name, number or collector.

With --interactive every line read from stdin starts a new search. A
search that finishes after a newer one was started is not shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			if interactive {
				return interactiveSearch(cmd, c)
			}
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			ms, err := c.SearchMembers(cmd.Context(), term, collector)
			if err != nil {
				return err
			}
			printMembers(cmd.OutOrStdout(), ms)
			return nil
		},
	}
	cmd.Flags().StringVar(&collector, "collector", "", "only members of this collector")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read search terms from stdin")
	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Show member totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := opts.client().MemberCounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range counts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", c.Label, c.Count)
			}
			return nil
		},
	})
	return cmd
}

func interactiveSearch(cmd *cobra.Command, c *client.Client) error {
	s := client.NewSearch(c)
	out := cmd.OutOrStdout()
	terms := make(chan string)
	sc := bufio.NewScanner(cmd.InOrStdin())
	go func() {
		defer close(terms)
		for sc.Scan() {
			terms <- strings.TrimSpace(sc.Text())
		}
	}()
	var (
		wg      sync.WaitGroup
		printMu sync.Mutex
	)
	for term := range terms {
		wg.Add(1)
		go func(term string) {
			defer wg.Done()
			applied, err := s.Run(cmd.Context(), term)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "search %q: %v\n", term, err)
				return
			}
			if !applied {
				return
			}
			t, ms := s.Results()
			if t != term {
				return
			}
			printMu.Lock()
			defer printMu.Unlock()
			fmt.Fprintf(out, "-- %q: %d members\n", term, len(ms))
			printMembers(out, ms)
		}(term)
	}
	wg.Wait()
	return sc.Err()
}

func printMembers(w io.Writer, ms []members.Member) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME\tCOLLECTOR\tSTATUS\tLAST PAYMENT")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.MemberNumber,
			orDash(members.Str(m.FullName)),
			orDash(members.Str(m.Collector)),
			orDash(members.Str(m.Status)),
			members.FormatCurrency(m.PaymentAmount),
		)
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newCollectorsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "collectors",
		Short: "List collectors with their member counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := opts.client().Collectors(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tNAME\tMEMBERS\tACTIVE")
			for _, c := range cs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", orDash(members.Str(c.Number)), c.Label(), c.MemberCount, c.Active)
			}
			return tw.Flush()
		},
	}
}

func newReportCmd(opts *options) *cobra.Command {
	var collector, output string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Download the members PDF report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = report.Filename(time.Now())
			}
			f, err := os.CreateTemp(".", ".memberctl-report-*")
			if err != nil {
				return err
			}
			defer os.Remove(f.Name())
			n, err := opts.client().DownloadReport(cmd.Context(), collector, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if err := os.Rename(f.Name(), output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", output, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&collector, "collector", "", "only members of this collector")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default members-report-<date>.pdf)")
	return cmd
}

func newGitCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Repository operations (admin only)",
	}

	var req gitops.PushRequest
	push := &cobra.Command{
		Use:   "push",
		Short: "Check the branch on GitHub and record a push operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().GitPush(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	push.Flags().StringVar(&req.Branch, "branch", gitops.DefaultBranch, "branch to push")
	push.Flags().StringVarP(&req.CommitMessage, "message", "m", gitops.DefaultCommitMessage, "commit message")

	var limit int
	logs := &cobra.Command{
		Use:   "logs",
		Short: "Show recent git operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := opts.client().GitLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tOPERATION\tSTATUS\tMESSAGE")
			for _, l := range ls {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.CreatedAt.Format(time.RFC3339), l.OperationType, l.Status, orDash(members.Str(l.Message)))
			}
			return tw.Flush()
		},
	}
	logs.Flags().IntVar(&limit, "limit", 20, "number of entries")

	cmd.AddCommand(push, logs)
	return cmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze MEMBER_NUMBER...",
		Short: "Show member, account, roles and collector records (admin only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().AnalyzeMembers(cmd.Context(), args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
