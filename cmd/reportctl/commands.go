package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/straye-as/activity-reports/internal/domain"
	"github.com/straye-as/activity-reports/internal/repository"
	"github.com/straye-as/activity-reports/internal/service"
)

// reportService is the part of service.ReportService the CLI drives
type reportService interface {
	Generate(ctx context.Context, req service.GenerateReportRequest) (*service.GeneratedReport, error)
	UpsertJobReport(ctx context.Context, req service.GenerateReportRequest) (*domain.JobReportResult, error)
	UpsertOrderReport(ctx context.Context, req service.GenerateReportRequest) (*domain.OrderReportResult, error)
	UpsertUserReport(ctx context.Context, req service.GenerateReportRequest) (*domain.UserReportResult, error)
	GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	GetReportByRange(ctx context.Context, key domain.QuarterRange) (*domain.Report, error)
	ListReports(ctx context.Context, req service.ListReportsRequest) (*service.ReportList, error)
	DeleteReport(ctx context.Context, id uuid.UUID) error
	AttachDocument(ctx context.Context, id uuid.UUID, name string, data []byte) error
}

// now is replaced in tests
var now = time.Now

type openFunc func(ctx context.Context) (reportService, func(), error)

type cli struct {
	open    openFunc
	svc     reportService
	closeFn func()
}

// newRootCmd builds the command tree. The returned func releases the service
// opened by a subcommand and must run after Execute, whether or not it failed.
func newRootCmd(open openFunc) (*cobra.Command, func()) {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "reportctl",
		Short: "Generate and manage quarterly activity reports",
		Long: `reportctl computes job, order and user statistics for a quarter range and
stores them on the range's report. Generating the same range again
overwrites the stored results.

Common workflows:

  Generate all areas for a quarter:
    reportctl generate --from Q1/2024

  Recompute only the order statistics of a half year:
    reportctl generate --from Q1/2024 --to Q2/2024 --area order

  Show a stored report:
    reportctl show --from Q1/2024

Configuration is read from config.json, .env and environment variables.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		c.generateCmd(),
		c.listCmd(),
		c.showCmd(),
		c.deleteCmd(),
		c.attachCmd(),
		quarterCmd(),
	)
	return root, c.close
}

func (c *cli) close() {
	if c.closeFn != nil {
		c.closeFn()
		c.svc, c.closeFn = nil, nil
	}
}

// connect opens the service on first use
func (c *cli) connect(cmd *cobra.Command, _ []string) error {
	if c.svc != nil {
		return nil
	}
	svc, closeFn, err := c.open(cmd.Context())
	if err != nil {
		return err
	}
	c.svc, c.closeFn = svc, closeFn
	return nil
}

// rangeFlags registers --from and --to; --to defaults to --from
func rangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first quarter, e.g. Q1/2024")
	cmd.Flags().String("to", "", "last quarter, e.g. Q2/2024 (default: --from)")
}

func readRange(cmd *cobra.Command) (domain.QuarterRange, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	if from == "" {
		return domain.QuarterRange{}, fmt.Errorf("--from is required")
	}
	if to == "" {
		to = from
	}

	qFrom, yFrom, err := domain.ParsePeriod(from)
	if err != nil {
		return domain.QuarterRange{}, err
	}
	qTo, yTo, err := domain.ParsePeriod(to)
	if err != nil {
		return domain.QuarterRange{}, err
	}
	return domain.QuarterRange{QuarterFrom: qFrom, YearFrom: yFrom, QuarterTo: qTo, YearTo: yTo}, nil
}

func (c *cli) generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Compute statistics for a quarter range",
		Args:    cobra.NoArgs,
		PreRunE: c.connect,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readRange(cmd)
			if err != nil {
				return err
			}
			area, _ := cmd.Flags().GetString("area")
			author, _ := cmd.Flags().GetString("author")

			req := service.GenerateReportRequest{Range: key}
			if author != "" {
				req.AuthorID = &author
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch area {
			case "all":
				generated, err := c.svc.Generate(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Generated %s [%s]\n", generated.Report, generated.Report.ID)
				printJobResult(out, generated.JobResult)
				printOrderResult(out, generated.OrderResult)
				printUserResult(out, generated.UserResult)
			case string(domain.ReportAreaJob):
				row, err := c.svc.UpsertJobReport(ctx, req)
				if err != nil {
					return err
				}
				printJobResult(out, row)
			case string(domain.ReportAreaOrder):
				row, err := c.svc.UpsertOrderReport(ctx, req)
				if err != nil {
					return err
				}
				printOrderResult(out, row)
			case string(domain.ReportAreaUser):
				row, err := c.svc.UpsertUserReport(ctx, req)
				if err != nil {
					return err
				}
				printUserResult(out, row)
			default:
				return fmt.Errorf("unknown area %q: use all, job, order or user", area)
			}
			return nil
		},
	}
	rangeFlags(cmd)
	cmd.Flags().String("area", "all", "area to compute: all, job, order or user")
	cmd.Flags().String("author", "", "user id recorded as report creator")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List stored reports",
		Args:    cobra.NoArgs,
		PreRunE: c.connect,
		RunE: func(cmd *cobra.Command, args []string) error {
			quarter, _ := cmd.Flags().GetString("quarter")
			year, _ := cmd.Flags().GetInt("year")
			author, _ := cmd.Flags().GetString("author")
			search, _ := cmd.Flags().GetString("search")
			sortBy, _ := cmd.Flags().GetString("sort")
			order, _ := cmd.Flags().GetString("order")
			page, _ := cmd.Flags().GetInt("page")
			pageSize, _ := cmd.Flags().GetInt("page-size")

			list, err := c.svc.ListReports(cmd.Context(), service.ListReportsRequest{
				Filter: repository.ReportFilter{
					QuarterFrom: domain.Quarter(strings.ToUpper(quarter)),
					YearFrom:    year,
					CreatedByID: author,
					Search:      search,
				},
				Sort:     repository.SortConfig{Field: sortBy, Order: repository.ParseSortOrder(order)},
				Page:     page,
				PageSize: pageSize,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tPERIOD\tCREATED\tDOCUMENT")
			for _, r := range list.Reports {
				doc := "-"
				if r.DocumentName != "" {
					doc = r.DocumentName
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Title, r.Period(), r.CreatedAt.Format(time.RFC3339), doc)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d, %d of %d reports\n", list.Page, len(list.Reports), list.Total)
			return nil
		},
	}
	cmd.Flags().String("quarter", "", "filter by first quarter (Q1..Q4)")
	cmd.Flags().Int("year", 0, "filter by first year")
	cmd.Flags().String("author", "", "filter by creator user id")
	cmd.Flags().String("search", "", "case-insensitive title search")
	cmd.Flags().String("sort", "createdAt", "sort by createdAt, title, yearFrom or quarterFrom")
	cmd.Flags().String("order", "desc", "sort order: asc or desc")
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("page-size", 20, "reports per page")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show [report-id]",
		Short:   "Show a report with its results",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: c.connect,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				report *domain.Report
				err    error
			)
			if len(args) == 1 {
				id, perr := uuid.Parse(args[0])
				if perr != nil {
					return fmt.Errorf("invalid report id: %w", perr)
				}
				report, err = c.svc.GetReport(cmd.Context(), id)
			} else {
				key, rerr := readRange(cmd)
				if rerr != nil {
					return rerr
				}
				report, err = c.svc.GetReportByRange(cmd.Context(), key)
			}
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	rangeFlags(cmd)
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <report-id>",
		Short:   "Delete a report and its results",
		Args:    cobra.ExactArgs(1),
		PreRunE: c.connect,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report id: %w", err)
			}
			if err := c.svc.DeleteReport(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %s\n", id)
			return nil
		},
	}
}

func (c *cli) attachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attach <report-id> <file>",
		Short:   "Attach a rendered document to a report",
		Args:    cobra.ExactArgs(2),
		PreRunE: c.connect,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report id: %w", err)
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = filepath.Base(args[1])
			}
			if err := c.svc.AttachDocument(cmd.Context(), id, name, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attached %s (%d bytes) to report %s\n", name, len(data), id)
			return nil
		},
	}
	cmd.Flags().String("name", "", "document name (default: file name)")
	return cmd
}

func quarterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quarter [QUARTER YEAR]",
		Short: "Print the calendar days of a quarter (default: current quarter)",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, year := domain.CurrentQuarter(now())
			switch len(args) {
			case 2:
				parsed, err := domain.ParseQuarter(strings.ToUpper(args[0]))
				if err != nil {
					return err
				}
				parsedYear, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid year %q", args[1])
				}
				q, year = parsed, parsedYear
			case 1:
				return fmt.Errorf("quarter needs both QUARTER and YEAR")
			}

			dr, err := domain.ResolveQuarter(q, year)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%d: %s to %s\n",
				q, year, dr.Start.Format(time.DateOnly), dr.End.Format(time.DateOnly))
			return nil
		},
	}
}

func printReport(w io.Writer, r *domain.Report) {
	fmt.Fprintf(w, "%s\n", r)
	fmt.Fprintf(w, "  ID:       %s\n", r.ID)
	fmt.Fprintf(w, "  Created:  %s\n", r.CreatedAt.Format(time.RFC3339))
	if r.CreatedBy != nil {
		fmt.Fprintf(w, "  Author:   %s\n", r.CreatedBy.DisplayName())
	}
	if r.DocumentName != "" {
		fmt.Fprintf(w, "  Document: %s\n", r.DocumentName)
	}
	printJobResult(w, r.JobResult)
	printOrderResult(w, r.OrderResult)
	printUserResult(w, r.UserResult)
}

func printJobResult(w io.Writer, r *domain.JobReportResult) {
	if r == nil {
		fmt.Fprintln(w, "Jobs: not computed")
		return
	}
	fmt.Fprintln(w, "Jobs:")
	fmt.Fprintf(w, "  Total:                    %d\n", r.TotalJobs)
	fmt.Fprintf(w, "  Avg completion regular:   %s\n", formatOptional(r.AvgCompletionTimeRegular))
	fmt.Fprintf(w, "  Avg completion wafer run: %s\n", formatOptional(r.AvgCompletionTimeWaferRun))
	fmt.Fprintf(w, "  Created/active/completed: %d/%d/%d\n", r.NumCreated, r.NumActive, r.NumCompleted)
}

func printOrderResult(w io.Writer, r *domain.OrderReportResult) {
	if r == nil {
		fmt.Fprintln(w, "Orders: not computed")
		return
	}
	fmt.Fprintln(w, "Orders:")
	fmt.Fprintf(w, "  Total:         %d\n", r.TotalOrders)
	fmt.Fprintf(w, "  Revenue:       %s\n", r.TotalRevenue.StringFixed(2))
	fmt.Fprintf(w, "  Average value: %s\n", r.AverageOrderValue.StringFixed(2))
	printCounts(w, "Per provider", r.OrdersPerServiceProvider)
	printCounts(w, "Per manager", r.OrdersPerAccountManager)
}

func printUserResult(w io.Writer, r *domain.UserReportResult) {
	if r == nil {
		fmt.Fprintln(w, "Users: not computed")
		return
	}
	fmt.Fprintln(w, "Users:")
	fmt.Fprintf(w, "  Customers:            %d (%d new)\n", r.TotalCustomers, r.NewCustomers)
	fmt.Fprintf(w, "  Account managers:     %d\n", r.TotalAccountManagers)
	fmt.Fprintf(w, "  Customers w/ orders:  %d\n", r.CustomersWithOrders)
	fmt.Fprintf(w, "  Orders per customer:  %.2f\n", r.AvgOrdersPerCustomer)
	if len(r.TopPerformingManagers) > 0 {
		fmt.Fprintln(w, "  Top managers:")
		for i, m := range r.TopPerformingManagers {
			fmt.Fprintf(w, "    %d. %s %.2f\n", i+1, m.Name, m.Value)
		}
	}
}

func printCounts(w io.Writer, label string, counts domain.CountMap) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "  %s:\n", label)
	for _, name := range names {
		fmt.Fprintf(w, "    %s: %d\n", name, counts[name])
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
