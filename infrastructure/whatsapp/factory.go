package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AzielCF/wa-gateway/core/config"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/AzielCF/wa-gateway/session"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// Factory builds whatsmeow clients, one device store per account. Containers
// are opened lazily and reused across logins of the same account.
type Factory struct {
	cfg *config.Config

	mu         sync.Mutex
	containers map[string]*sqlstore.Container
}

func NewFactory(cfg *config.Config) *Factory {
	osName := fmt.Sprintf("%s %s", cfg.Whatsapp.OS, cfg.App.Version)
	store.DeviceProps.Os = proto.String(osName)

	if !strings.Contains(cfg.Database.URI, "%s") && len(cfg.Accounts) > 1 {
		logrus.Warn("[WHATSAPP] DB_URI has no %s placeholder; all accounts share one device store")
	}

	return &Factory{
		cfg:        cfg,
		containers: make(map[string]*sqlstore.Container),
	}
}

// NewClient satisfies session.ClientFactory.
func (f *Factory) NewClient(ctx context.Context, accountID string) (session.ProtocolClient, error) {
	container, err := f.container(ctx, accountID)
	if err != nil {
		return nil, err
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, pkgError.InternalServerError(fmt.Sprintf("failed to get device: %v", err))
	}

	level := f.cfg.Whatsapp.LogLevel
	cli := whatsmeow.NewClient(device, waLog.Stdout(fmt.Sprintf("Client-%s", accountID), level, true))
	// Reconnects are owned by the session manager.
	cli.EnableAutoReconnect = false
	cli.AutoTrustIdentity = true

	paired := device.ID != nil
	logrus.WithFields(logrus.Fields{
		"account_id": accountID,
		"paired":     paired,
	}).Info("[WHATSAPP] Created client")

	return newClient(accountID, cli), nil
}

func (f *Factory) container(ctx context.Context, accountID string) (*sqlstore.Container, error) {
	dialect, address := f.cfg.DeviceStoreURI(accountID)

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.containers[address]; ok {
		return c, nil
	}

	dbLog := waLog.Stdout(fmt.Sprintf("DB-%s", accountID), f.cfg.Whatsapp.LogLevel, true)
	c, err := sqlstore.New(ctx, dialect, address, dbLog)
	if err != nil {
		return nil, pkgError.InternalServerError(fmt.Sprintf("database initialization error: %v", err))
	}
	f.containers[address] = c
	return c, nil
}

// Close releases every opened device store.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for address, c := range f.containers {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("[WHATSAPP] Failed to close device store")
		}
		delete(f.containers, address)
	}
}
