package backend

import (
	"context"
	"log/slog"

	"ledgerly/internal/amqp"
	"ledgerly/internal/config"
	"ledgerly/internal/notify"
	"ledgerly/internal/sheets"
	gsheet "ledgerly/internal/sheets/google"
	sheetsmem "ledgerly/internal/sheets/memory"
)

// NewPublisher connects the change publisher. A missing URL or an
// unreachable broker yields nil; writes then skip publishing.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		return nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// NewSheetsWriter returns the Google Sheets mirror, or an in-memory one when
// no spreadsheet is configured.
func NewSheetsWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sheets.TransactionWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return sheetsmem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetBase:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// NewNotifier combines every configured delivery channel. With none
// configured reports are only logged.
func NewNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	var channels notify.Multi
	if cfg.SMTPHost != "" {
		smtp, err := notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			logger.Warn("SMTP notifier disabled", "error", err)
		} else {
			channels = append(channels, smtp)
		}
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("Telegram notifier disabled", "error", err)
		} else {
			channels = append(channels, tg)
		}
	}
	switch len(channels) {
	case 0:
		return notify.Log{}
	case 1:
		return channels[0]
	default:
		return channels
	}
}
