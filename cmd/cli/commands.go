package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/balanceledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/balanceledger/internal/adapter/repository/postgres"
	"github.com/iho/balanceledger/internal/infrastructure/postgres"
	"github.com/iho/balanceledger/internal/usecase"
)

type accountBody struct {
	ID        string `json:"id"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at,omitempty"`
}

type historyBody struct {
	ID         int64  `json:"id"`
	AccountID  string `json:"account_id"`
	Action     string `json:"action"`
	Amount     string `json:"amount"`
	OccurredAt string `json:"occurred_at"`
}

type listBody[T any] struct {
	Data []T `json:"data"`
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "open [id]",
		Short: "Open an account with a zero balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{}
			if len(args) == 1 {
				req["id"] = args[0]
			}
			var acc accountBody
			if err := callAPI(http.MethodPost, "/api/v1/accounts/", req, nil, &acc); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), acc)
		},
	})

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp listBody[accountBody]
			if err := callAPI(http.MethodGet, "/api/v1/accounts/"+pageQuery(limit, offset), nil, nil, &resp); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBALANCE")
			for _, acc := range resp.Data {
				fmt.Fprintf(tw, "%s\t%s\n", truncate(acc.ID, 32), acc.Balance)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Page size")
	list.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.AddCommand(list)

	return cmd
}

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Balance reads and mutations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <account-id>",
		Short: "Show the current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp accountBody
			if err := callAPI(http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0]), nil, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Balance)
			return nil
		},
	})

	cmd.AddCommand(mutationCmd("debit"), mutationCmd("credit"))

	return cmd
}

func mutationCmd(action string) *cobra.Command {
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   action + " <account-id> <amount>",
		Short: "Apply a " + action + " to the account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			if !amount.IsPositive() {
				return fmt.Errorf("amount must be positive, got %s", amount)
			}

			var headers map[string]string
			if idempotencyKey != "" {
				headers = map[string]string{"Idempotency-Key": idempotencyKey}
			}

			var resp struct {
				Balance string `json:"balance"`
			}
			path := "/api/v1/accounts/" + url.PathEscape(args[0]) + "/" + action
			if err := callAPI(http.MethodPost, path, map[string]string{"amount": amount.String()}, headers, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Replay-safe key for this mutation")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history <account-id>",
		Short: "List account history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp listBody[historyBody]
			path := "/api/v1/accounts/" + url.PathEscape(args[0]) + "/history" + pageQuery(limit, offset)
			if err := callAPI(http.MethodGet, path, nil, nil, &resp); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tACTION\tAMOUNT\tOCCURRED AT")
			for _, rec := range resp.Data {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", rec.ID, rec.Action, rec.Amount, rec.OccurredAt)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	return cmd
}

func reconcileCmd() *cobra.Command {
	var repair, all bool

	cmd := &cobra.Command{
		Use:   "reconcile [account-id]",
		Short: "Compare balance snapshots against history",
		Long:  `Checks one account through the API, or every account directly against the database with --all.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return reconcileAll(cmd, repair)
			}

			method := http.MethodGet
			if repair {
				method = http.MethodPost
			}
			var result map[string]any
			if err := callAPI(method, "/api/v1/accounts/"+url.PathEscape(args[0])+"/reconcile", nil, nil, &result); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Rewrite drifted snapshots from history")
	cmd.Flags().BoolVar(&all, "all", false, "Walk every account (requires --database-url)")

	return cmd
}

func reconcileAll(cmd *cobra.Command, repair bool) error {
	if databaseURL == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required with --all")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := postgres.NewPool(ctx, databaseURL, 2, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	accountRepo := postgresRepo.NewAccountRepository(pool)
	historyRepo := postgresRepo.NewHistoryRepository(pool)

	// The server's cache is not reachable from here; repaired balances
	// reach it when its TTL expires.
	uc := usecase.NewReconciliationUseCase(
		postgresRepo.NewTxManager(pool, 0),
		accountRepo,
		historyRepo,
		memory.NewBalanceCache(1, 0),
		nil,
		zerolog.Nop(),
	)

	report, err := uc.GenerateReconciliationReport(ctx, repair)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Accounts checked: %d\n", report.TotalAccounts)
	fmt.Fprintf(out, "Reconciled:       %d\n", report.ReconciledAccounts)
	fmt.Fprintf(out, "Discrepancies:    %d\n", len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		fmt.Fprintf(out, "  %s recorded=%s calculated=%s repaired=%t\n",
			truncate(d.AccountID, 32), d.RecordedBalance.StringFixed(2), d.CalculatedBalance.StringFixed(2), d.Repaired)
	}

	return nil
}

func migrateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "internal/infrastructure/postgres/migrations", "Migrations directory")

	run := func(fn func(url, path string, logger zerolog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
			return fn(databaseURL, path, logger)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run(postgres.RunMigrations)},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs, RunE: run(postgres.RunMigrationsDown)},
	)

	return cmd
}

func pageQuery(limit, offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return "?" + q.Encode()
}
