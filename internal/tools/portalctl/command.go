package portalctl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/omada-captive-portal/internal/security"
	"github.com/sandeepkv93/omada-captive-portal/internal/service"
	"github.com/sandeepkv93/omada-captive-portal/internal/tools/common"
	"github.com/sandeepkv93/omada-captive-portal/internal/tools/loadgen"
	"github.com/sandeepkv93/omada-captive-portal/internal/tools/ui"
)

type options struct {
	baseURL string
	token   string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "portalctl", Short: "Operate and exercise an Omada captive portal API"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "portal API base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("PORTALCTL_TOKEN"), "bearer token for ingest pushes")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newDeviceCommand(opts), newClientCommand(opts), newPortalCommand(opts), newLoadgenCommand(opts), newTokenCommand(opts))
	return cmd
}

func newDeviceCommand(opts *options) *cobra.Command {
	var file string
	var concurrency int
	cmd := &cobra.Command{Use: "device", Short: "Network device inventory"}
	push := &cobra.Command{
		Use:   "push",
		Short: "Push device descriptors from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := readRecords[service.DeviceDescriptor](file)
			if err != nil {
				return err
			}
			c, err := newAPIClient(opts.baseURL, opts.token, opts.timeout)
			if err != nil {
				return err
			}
			return finish(opts, "device push", func(ctx context.Context) ([]string, error) {
				return pushDevices(ctx, c, devices, concurrency)
			})
		},
	}
	push.Flags().StringVarP(&file, "file", "f", "devices.json", "JSON file with one descriptor or an array")
	push.Flags().IntVar(&concurrency, "concurrency", 4, "parallel pushes")
	cmd.AddCommand(push)
	return cmd
}

func newClientCommand(opts *options) *cobra.Command {
	var file string
	var concurrency int
	cmd := &cobra.Command{Use: "client", Short: "Wireless client inventory"}
	push := &cobra.Command{
		Use:   "push",
		Short: "Push client descriptors from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := readRecords[service.ClientDescriptor](file)
			if err != nil {
				return err
			}
			c, err := newAPIClient(opts.baseURL, opts.token, opts.timeout)
			if err != nil {
				return err
			}
			return finish(opts, "client push", func(ctx context.Context) ([]string, error) {
				return pushClients(ctx, c, clients, concurrency)
			})
		},
	}
	push.Flags().StringVarP(&file, "file", "f", "clients.json", "JSON file with one descriptor or an array")
	push.Flags().IntVar(&concurrency, "concurrency", 4, "parallel pushes")
	cmd.AddCommand(push)
	return cmd
}

func newPortalCommand(opts *options) *cobra.Command {
	sim := simulateOptions{}
	cmd := &cobra.Command{Use: "portal", Short: "Guest portal flows"}
	simulate := &cobra.Command{
		Use:   "simulate",
		Short: "Run a guest through login page, auth, status and logout",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(opts.baseURL, "", opts.timeout)
			if err != nil {
				return err
			}
			return finish(opts, "portal simulate", func(ctx context.Context) ([]string, error) {
				return simulatePortal(ctx, c, sim)
			})
		},
	}
	f := simulate.Flags()
	f.StringVar(&sim.clientMAC, "client-mac", "DE-AD-BE-EF-00-01", "guest client MAC")
	f.StringVar(&sim.site, "site", "Default", "controller site name")
	f.StringVar(&sim.apMAC, "ap-mac", "", "access point MAC (wireless)")
	f.StringVar(&sim.ssidName, "ssid", "", "SSID name (wireless)")
	f.StringVar(&sim.radioID, "radio-id", "", "radio id (wireless)")
	f.StringVar(&sim.gatewayMAC, "gateway-mac", "", "gateway MAC (wired)")
	f.StringVar(&sim.vid, "vid", "", "VLAN id (wired)")
	f.StringVar(&sim.username, "username", "", "portal username")
	f.StringVar(&sim.password, "password", os.Getenv("PORTALCTL_PASSWORD"), "portal password")
	f.BoolVar(&sim.keep, "keep", false, "skip logout at the end")
	cmd.AddCommand(simulate)
	return cmd
}

func newLoadgenCommand(opts *options) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate ingest and portal traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.BaseURL = opts.baseURL
			cfg.Token = opts.token
			return finish(opts, "loadgen", func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, cfg)
				if err != nil {
					return nil, err
				}
				details := []string{fmt.Sprintf("total=%d failures=%d elapsed=%s", res.TotalRequests, res.Failures, res.Elapsed.Truncate(time.Millisecond))}
				for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "other", "error"} {
					if n := res.StatusClasses[class]; n > 0 {
						details = append(details, fmt.Sprintf("%s=%d", class, n))
					}
				}
				if res.Failures > 0 {
					return details, fmt.Errorf("%d requests failed", res.Failures)
				}
				return details, nil
			})
		},
	}
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: mixed, ingest, portal, read")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "run duration")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 42, "random seed")
	return cmd
}

func newTokenCommand(opts *options) *cobra.Command {
	var secret, issuer, audience, subject string
	var ttl time.Duration
	cmd := &cobra.Command{Use: "token", Short: "Ingest bearer tokens"}
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign an ingest token for controller pushes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(secret) < 32 {
				return fmt.Errorf("--secret must be at least 32 characters")
			}
			token, err := security.NewJWTManager(issuer, audience, secret).SignIngestToken(subject, ttl)
			if err != nil {
				return err
			}
			if opts.ci {
				common.PrintCIResult(true, "token mint", []string{token}, nil)
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	f := mint.Flags()
	f.StringVar(&secret, "secret", os.Getenv("INGEST_JWT_SECRET"), "HMAC signing secret")
	f.StringVar(&issuer, "issuer", "omada-controller", "token issuer")
	f.StringVar(&audience, "audience", "omada-portal", "token audience")
	f.StringVar(&subject, "subject", "portalctl", "token subject")
	f.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.AddCommand(mint)
	return cmd
}

func finish(opts *options, name string, fn func(context.Context) ([]string, error)) error {
	details, err := run(opts, name, fn)
	if opts.ci {
		common.PrintCIResult(err == nil, name, details, err)
	}
	if err != nil {
		os.Exit(4)
	}
	return nil
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}
