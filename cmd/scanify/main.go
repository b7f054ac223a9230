package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/scanify/scanify/internal/invoice"
	"github.com/scanify/scanify/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("scanify")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "scanify.db", "Database file path")
		storagePath = fs.StringLong("storage", "./pages", "Storage directory for page images and export artifacts")
		scannerType = fs.StringLong("scanner", "ocrspace", "Scanner type: 'ocrspace' or 'gemini'")
		ocrURL      = fs.StringLong("ocr-url", "https://api.ocr.space", "ocr.space API base URL")
		ocrKey      = fs.StringLong("ocr-key", "", "ocr.space API key (or set SCANIFY_OCR_KEY env var)")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		smtpHost    = fs.StringLong("smtp-host", "", "SMTP host for export mail (empty disables export mail)")
		smtpPort    = fs.IntLong("smtp-port", 587, "SMTP port")
		smtpUser    = fs.StringLong("smtp-user", "", "SMTP username")
		smtpPass    = fs.StringLong("smtp-pass", "", "SMTP password")
		mailFrom    = fs.StringLong("mail-from", "", "From address for export mail")
		mailTo      = fs.StringLong("mail-to", "", "Comma-separated recipients for export mail")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SCANIFY"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Initializing database...")
	blob, err := invoice.NewBoltStore(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer blob.Close()
	store := invoice.NewRecordStore(blob)

	var scanner scanning.Scanner
	switch *scannerType {
	case "ocrspace":
		apiKey := *ocrKey
		if apiKey == "" {
			apiKey = os.Getenv("OCR_SPACE_API_KEY")
		}
		if apiKey == "" {
			slog.Error("ocr.space API key is required. Set --ocr-key flag or SCANIFY_OCR_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing ocr.space scanner...", "url", *ocrURL)
		scanner, err = scanning.NewOCRSpace(*ocrURL, apiKey)
		if err != nil {
			slog.Error("Failed to initialize ocr.space scanner", "error", err)
			os.Exit(1)
		}
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "ocrspace or gemini")
		os.Exit(1)
	}
	defer scanner.Close()

	slog.Info("Initializing storage...")
	files, err := invoice.NewLocalFileStore(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	var recipients []string
	for _, addr := range strings.Split(*mailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	mailer := invoice.NewSMTPMailer(*smtpHost, *smtpPort, *smtpUser, *smtpPass, *mailFrom, recipients)
	if !mailer.Available() {
		slog.Warn("Export mail is not configured; export requests will be rejected")
	}

	renderer := invoice.NewDocumentRenderer(files)
	service := invoice.NewService(store, files, scanner, renderer, mailer)

	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(service, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
