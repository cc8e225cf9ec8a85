package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/authz"
	"github.com/mcpmux/mcpmux/pkg/config"
	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/eventbus"
	"github.com/mcpmux/mcpmux/pkg/feature"
	"github.com/mcpmux/mcpmux/pkg/logging"
	"github.com/mcpmux/mcpmux/pkg/oauthclient"
	"github.com/mcpmux/mcpmux/pkg/pool"
	"github.com/mcpmux/mcpmux/pkg/prefixcache"
	"github.com/mcpmux/mcpmux/pkg/secretstore"
	"github.com/mcpmux/mcpmux/pkg/serverlog"
	"github.com/mcpmux/mcpmux/pkg/storage"
)

const keychainService = "mcpmuxd"

// App bundles every collaborator a command needs: the open database, one
// repository per aggregate, and the services built on top of them. serve.go
// additionally builds the HTTP-facing components (pkg/mcpgateway,
// pkg/authserver) on top of this same App; the operator subcommands use the
// repositories, and the server subcommands also use Pool.
type App struct {
	DB *storage.DB

	Spaces           domain.SpaceRepository
	InstalledServers domain.InstalledServerRepository
	Credentials      domain.CredentialRepository
	OAuthRegs        domain.OutboundOAuthRegistrationRepository
	Features         domain.ServerFeatureRepository
	FeatureSets      domain.FeatureSetRepository
	Clients          domain.InboundClientRepository
	InboundOAuth     domain.InboundOAuthRepository
	Settings         domain.SettingsRepository

	Events   *eventbus.Bus
	Emitter  eventbus.Emitter
	Prefixes *prefixcache.Cache
	Pool     *pool.Manager
	Feature  *feature.Service
	Spacer   *authz.SpaceResolver
	Grants   *authz.GrantResolver
	Logs     *serverlog.Writer

	Log     *zap.SugaredLogger
	syncLog func()
}

// newOperatorApp builds an App for a one-shot operator subcommand (space,
// server, client): logs to the console instead of the daemon's log file,
// and uses the data directory alongside --db for any local-process state.
func newOperatorApp() (*App, error) {
	return newApp(flagDBFile, filepath.Join(filepath.Dir(flagDBFile), "state"), "", flagVerbose)
}

// newApp opens the database at dbFile, obtains the field-encryption master
// key from the platform keychain (fatal at startup on failure),
// and wires every repository and the pool/feature/authz services on top —
// the operator-subcommand-shared half of mcpmuxd's dependency graph. serve
// additionally layers the inbound-facing components on top of this.
func newApp(dbFile, stateDir, logFile string, verbose bool) (*App, error) {
	log, syncLog, err := logging.New(logFile, verbose)
	if err != nil {
		return nil, fmt.Errorf("mcpmuxd: build logger: %w", err)
	}

	db, err := storage.Open(storage.WithDatabaseFile(dbFile), storage.WithLogger(log))
	if err != nil {
		syncLog()
		return nil, fmt.Errorf("mcpmuxd: open database: %w", err)
	}

	keyProvider := secretstore.NewKeychainProvider(keychainService, "master-key")
	masterKey, err := keyProvider.MasterKey()
	if err != nil {
		_ = db.Close()
		syncLog()
		return nil, fmt.Errorf("mcpmuxd: obtain master key: %w", err)
	}
	encryptor, err := secretstore.NewFieldEncryptor(masterKey)
	if err != nil {
		_ = db.Close()
		syncLog()
		return nil, fmt.Errorf("mcpmuxd: build field encryptor: %w", err)
	}

	spaces := storage.NewSpaceRepository(db)
	installedServers := storage.NewInstalledServerRepository(db)
	credentials := storage.NewCredentialRepository(db, encryptor)
	oauthRegs := storage.NewOutboundOAuthRegistrationRepository(db)
	features := storage.NewServerFeatureRepository(db)
	featureSets := storage.NewFeatureSetRepository(db)
	clients := storage.NewInboundClientRepository(db)
	inboundOAuth := storage.NewInboundOAuthRepository(db)
	settings := storage.NewSettingsRepository(db)

	bus := eventbus.New(log)
	emitter := eventbus.NewEmitter(bus)
	prefixes := prefixcache.New()

	browserOpener := oauthclient.SystemBrowserOpener{}
	oauthManager := oauthclient.NewManager(browserOpener, log)

	// Settings is resolved once here (rather than threaded in from serve's
	// own config.Resolve call) purely to size the server-log writer's
	// retention. serve resolves the settings again once at startup for the
	// gateway port, and the pool reads the OAuth callback port from the
	// settings repository on each interactive authorization.
	resolvedSettings, err := config.Resolve(context.Background(), settings)
	if err != nil {
		_ = db.Close()
		syncLog()
		return nil, fmt.Errorf("mcpmuxd: resolve settings: %w", err)
	}
	logWriter := serverlog.New(filepath.Join(filepath.Dir(dbFile), "logs"), resolvedSettings.LogRetentionDays, domain.SystemClock{})

	poolManager := pool.NewManager(pool.Deps{
		InstalledServers: installedServers,
		Credentials:      credentials,
		OAuthRegs:        oauthRegs,
		Features:         features,
		FeatureSets:      featureSets,
		Settings:         settings,
		OAuth:            oauthManager,
		Prefixes:         prefixes,
		Events:           emitter,
		Logs:             logWriter,
		Clock:            domain.SystemClock{},
		StateDir:         stateDir,
		Log:              log,
	})

	featureService := feature.NewService(features, featureSets, prefixes)
	spaceResolver := authz.NewSpaceResolver(clients, spaces, log)
	grantResolver := authz.NewGrantResolver(clients, featureSets)

	return &App{
		DB:               db,
		Spaces:           spaces,
		InstalledServers: installedServers,
		Credentials:      credentials,
		OAuthRegs:        oauthRegs,
		Features:         features,
		FeatureSets:      featureSets,
		Clients:          clients,
		InboundOAuth:     inboundOAuth,
		Settings:         settings,
		Events:           bus,
		Emitter:          emitter,
		Prefixes:         prefixes,
		Pool:             poolManager,
		Feature:          featureService,
		Spacer:           spaceResolver,
		Grants:           grantResolver,
		Logs:             logWriter,
		Log:              log,
		syncLog:          syncLog,
	}, nil
}

// Close releases the database handle, closes every open server-log file,
// and flushes buffered log output.
func (a *App) Close() {
	if a.Logs != nil {
		_ = a.Logs.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.syncLog != nil {
		a.syncLog()
	}
}

// defaultDataDir is the per-user data directory mcpmuxd's database and
// per-server log files live under ("a single encrypted SQLite...
// file under the per-user data directory").
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mcpmuxd")
	}
	return filepath.Join(".", ".mcpmuxd")
}
