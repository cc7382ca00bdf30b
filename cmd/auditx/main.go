// Command auditx operates on an audit database from the command line:
// verifying hash-chain integrity and generating compliance exports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hengadev/auditx"
	"github.com/hengadev/auditx/providers/sqlite"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "verify":
		verifyCommand(os.Args[2:])
	case "export":
		exportCommand(os.Args[2:])
	case "init":
		initCommand(os.Args[2:])
	case "version":
		fmt.Printf("auditx %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  verify    Verify the audit log hash chain\n")
	fmt.Fprintf(os.Stderr, "  export    Generate a compliance export\n")
	fmt.Fprintf(os.Stderr, "  init      Write a starter configuration file\n")
	fmt.Fprintf(os.Stderr, "  version   Show version information\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for help on a specific command.\n", os.Args[0])
}

func verifyCommand(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	dbPath := fs.String("db", "audit.db", "Path to audit database")
	verbose := fs.Bool("v", false, "Verbose output")
	fs.Parse(args)

	ctx := context.Background()
	store, err := sqlite.Open(*dbPath)
	if err != nil {
		fatal("opening %s: %v", *dbPath, err)
	}
	defer store.Close()

	entries, err := store.Query(ctx, auditx.Filter{})
	if err != nil {
		fatal("reading audit log: %v", err)
	}

	broken, err := auditx.VerifyChain(entries, auditx.GenesisHash)
	if err != nil {
		if broken >= 0 && broken < len(entries) {
			fmt.Fprintf(os.Stderr, "FAIL: chain broken at entry %d (id=%s): %v\n",
				broken, entries[broken].ID, err)
		} else {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		}
		os.Exit(1)
	}

	if *verbose {
		for _, e := range entries {
			fmt.Printf("%s  %-8s %-20s %s\n", e.Timestamp.Format(time.RFC3339), e.Action, e.ResourceType, e.ID)
		}
	}
	fmt.Printf("OK: %d entries, chain intact\n", len(entries))
}

func exportCommand(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "audit.db", "Path to audit database")
	configPath := fs.String("config", "auditx.yaml", "Path to configuration file")
	format := fs.String("format", "csv", "Export format: csv, json, xlsx, xml, pdf")
	scopes := fs.String("scopes", "", "Comma-separated scopes: security, compliance, data-access, auth")
	out := fs.String("out", "", "Output file (default: generated name in current directory)")
	requestedBy := fs.String("requested-by", "cli", "Requester recorded in the chain of custody")
	sign := fs.Bool("sign", false, "HMAC-sign the export (requires signing key)")
	encrypt := fs.Bool("encrypt", false, "Encrypt the export file (requires encryption key)")
	since := fs.Duration("since", 0, "Only include entries newer than this (e.g. 720h)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal("loading configuration: %v", err)
	}
	// The CLI never buffers: entries come from the database, not Log calls.
	cfg.FlushInterval = 0

	ctx := context.Background()
	store, err := sqlite.Open(*dbPath)
	if err != nil {
		fatal("opening %s: %v", *dbPath, err)
	}
	defer store.Close()

	pipeline, err := auditx.New(ctx, store, cfg)
	if err != nil {
		fatal("building pipeline: %v", err)
	}
	defer pipeline.Close(ctx)

	req := auditx.ExportRequest{
		Format:      auditx.Format(*format),
		Scopes:      parseScopes(*scopes),
		RequestedBy: *requestedBy,
		Sign:        *sign,
		Encrypt:     *encrypt,
	}
	if *since > 0 {
		req.Filter.From = time.Now().Add(-*since)
	}

	result, err := pipeline.Exporter.Create(ctx, req)
	if err != nil {
		fatal("export failed: %v", err)
	}

	dest := *out
	if dest == "" {
		dest = result.FileName
	}
	if err := os.WriteFile(dest, result.File, 0o600); err != nil {
		fatal("writing %s: %v", dest, err)
	}

	fmt.Printf("Exported %d entries to %s\n", result.RecordsExported, dest)
	fmt.Printf("  export id:    %s\n", result.ExportID)
	fmt.Printf("  record count: %s\n", result.RecordCountHash)
	fmt.Printf("  content hash: %s\n", result.ContentHash)
	if result.Signature != "" {
		fmt.Printf("  signature:    %s\n", result.Signature)
	}
}

func initCommand(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "auditx.yaml", "Path to configuration file to create")
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fatal("%s already exists (use -force to overwrite)", *configPath)
	}

	starter := auditx.Config{
		AuditRetentionDays: auditx.DefaultRetentionDays,
		HIPAACompliant:     true,
		DetectPII:          true,
		Source:             auditx.DefaultSource,
	}
	data, err := yaml.Marshal(starter)
	if err != nil {
		fatal("encoding configuration: %v", err)
	}
	if err := os.WriteFile(*configPath, data, 0o600); err != nil {
		fatal("writing %s: %v", *configPath, err)
	}
	fmt.Printf("Wrote %s\n", *configPath)
	fmt.Println("Set AUDITX_ENCRYPTION_KEY and AUDITX_SIGNING_KEY in the environment (or a key provider) before production use.")
}

// loadConfig layers configuration: .env file (if present), then the YAML
// file (if present), then AUDITX_* environment variables for the keys.
func loadConfig(path string) (auditx.Config, error) {
	godotenv.Load()

	cfg, err := auditx.LoadConfigFromEnvironment()
	if err != nil {
		return auditx.Config{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return auditx.Config{}, err
	}

	var fileCfg auditx.Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return auditx.Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Keys stay environment-only; everything else the file may override.
	fileCfg.EncryptionKey = cfg.EncryptionKey
	fileCfg.SigningKey = cfg.SigningKey
	if err := fileCfg.Validate(); err != nil {
		return auditx.Config{}, err
	}
	return fileCfg, nil
}

func parseScopes(s string) []auditx.Scope {
	if s == "" {
		return nil
	}
	var out []auditx.Scope
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, auditx.Scope(part))
		}
	}
	return out
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
