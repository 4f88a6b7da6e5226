package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/egaotan/solana-token2022/backend"
	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/dingsdk"
	"github.com/egaotan/solana-token2022/harvest"
	"github.com/egaotan/solana-token2022/keystore"
	"github.com/egaotan/solana-token2022/mint"
	"github.com/egaotan/solana-token2022/networkdetect"
	"github.com/egaotan/solana-token2022/server"
	"github.com/egaotan/solana-token2022/store"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
)

var ErrNoKey = errors.New("app: no signing key configured")

type App struct {
	ctx       context.Context
	logger    *log.Logger
	config    *config.Config
	backend   *backend.Backend
	creator   *mint.Creator
	control   *mint.Controller
	harvester *harvest.Harvester
	store     *store.Store
	dsdk      *dingsdk.DingSdk
	detector  *networkdetect.NetworkDetector
	server    *server.Server
	authority *solana.PrivateKey
	mode      harvest.Mode
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		ctx:    ctx,
		logger: utils.NewConsoleLog("token2022"),
		config: cfg,
	}
	mode, err := harvest.ParseMode(cfg.HarvestMode)
	if err != nil {
		return nil, err
	}
	app.mode = mode
	//
	nodes := cfg.UsableNodes()
	if cfg.DetectNodes {
		ordered, err := networkdetect.Fastest(nodes, networkdetect.IcmpProbe(3, 3*time.Second))
		if err != nil {
			app.logger.Printf("detect nodes err: %s, keep configured order", err.Error())
		} else {
			nodes = ordered
		}
	}
	app.logger.Printf("rpc node: %s", nodes[0].Rpc)
	app.backend = backend.NewBackend(nodes, cfg.Commitment,
		time.Duration(cfg.ConfirmTimeout)*time.Second, time.Duration(cfg.PollInterval)*time.Millisecond)
	app.backend.SetPriorityFee(cfg.PriorityFee)
	//
	ks := keystore.NewKeystore(nil)
	key, err := ks.Resolve(ctx, keystore.Source{Key: cfg.Key, File: cfg.KeyFile, Secret: cfg.KeySecret})
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	if key == nil {
		return nil, ErrNoKey
	}
	app.backend.AddWallet(*key)
	app.backend.SetPlayer(key.PublicKey())
	app.authority, err = ks.Resolve(ctx, keystore.Source{Key: cfg.AuthorityKey, Secret: cfg.AuthoritySecret})
	if err != nil {
		return nil, fmt.Errorf("load authority key: %w", err)
	}
	//
	app.creator = mint.NewCreator(app.backend)
	app.control = mint.NewController(app.backend)
	app.harvester = harvest.NewHarvester(app.backend)
	if cfg.DingUrl != "" {
		app.dsdk = dingsdk.NewDingSdk(cfg.DingUrl)
		app.harvester.SetNotifier(app.dsdk)
	}
	if dsn := cfg.DSN(); dsn != "" {
		app.store, err = store.NewStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		app.creator.SetRecorder(app.store)
		app.harvester.SetRecorder(app.store)
	}
	if cfg.DetectNodes {
		var notifier networkdetect.Notifier
		if app.dsdk != nil {
			notifier = app.dsdk
		}
		app.detector, err = networkdetect.NewNetworkDetector(nodes[0], networkdetect.IcmpProbe(1, 3*time.Second), notifier)
		if err != nil {
			app.logger.Printf("network detector err: %s", err.Error())
		}
	}
	//
	app.server = server.NewServer(ctx, cfg.Listen, key.PublicKey(), app.creator, app.harvester)
	app.server.SetDefaults(server.Defaults{BatchSize: cfg.BatchSize, Mode: mode, Parallelism: cfg.Parallelism})
	app.server.SetAuthority(app.authority)
	app.server.SetController(app.control)
	if app.store != nil {
		app.server.SetArchive(app.store)
	}
	return app, nil
}

func (app *App) Service() {
	app.Start()
	<-app.ctx.Done()
	app.Stop()
}

func (app *App) Start() {
	if app.store != nil {
		app.store.Start()
	}
	if app.detector != nil {
		app.detector.Start(app.ctx)
	}
	app.server.StartRPC()
	app.logger.Printf("token2022 engine has started, player %s......", app.backend.Player())
}

func (app *App) Stop() {
	app.server.StopRPC()
	if app.detector != nil {
		app.detector.Stop()
	}
	if app.store != nil {
		app.store.Stop()
	}
	app.logger.Printf("token2022 engine has stopped......")
}

// Run executes one command line operation with the store running, so its
// records are written before returning.
func (app *App) Run(fn func(ctx context.Context) error) error {
	if app.store != nil {
		app.store.Start()
		defer app.store.Stop()
	}
	return fn(app.ctx)
}

func (app *App) Player() solana.PublicKey {
	return app.backend.Player()
}

func (app *App) Create(ctx context.Context, file *mint.BlueprintFile) (*mint.Result, error) {
	bp, err := file.Blueprint(app.Player())
	if err != nil {
		return nil, err
	}
	opts := mint.Options{}
	if app.authority != nil {
		opts.Signers = append(opts.Signers, *app.authority)
	}
	return app.creator.Create(ctx, bp, opts)
}

// Simulate assembles the blueprint under a throwaway mint key and runs it
// through the node without sending.
func (app *App) Simulate(ctx context.Context, file *mint.BlueprintFile) (*mint.Plan, []string, uint64, error) {
	bp, err := file.Blueprint(app.Player())
	if err != nil {
		return nil, nil, 0, err
	}
	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, nil, 0, err
	}
	plan, err := app.creator.Assembler().Assemble(ctx, bp, mintKey.PublicKey())
	if err != nil {
		return nil, nil, 0, err
	}
	signers := []solana.PrivateKey{mintKey}
	if app.authority != nil {
		signers = append(signers, *app.authority)
	}
	logs, units, err := app.backend.Simulate(ctx, plan.Instructions(), signers...)
	return plan, logs, units, err
}

func (app *App) signers() []solana.PrivateKey {
	if app.authority == nil {
		return nil
	}
	return []solana.PrivateKey{*app.authority}
}

func (app *App) SetAuthority(ctx context.Context, mintKey solana.PublicKey, t token2022.AuthorityType, newAuthority *solana.PublicKey) (*mint.Change, error) {
	return app.control.SetAuthority(ctx, mintKey, t, newAuthority, app.signers()...)
}

func (app *App) MintTo(ctx context.Context, mintKey solana.PublicKey, amount uint64, owner *solana.PublicKey) (*mint.Change, error) {
	return app.control.MintTo(ctx, mintKey, amount, owner, app.signers()...)
}

func (app *App) UpdateMetadata(ctx context.Context, mintKey solana.PublicKey, update *mint.MetadataUpdate) (*mint.Change, error) {
	return app.control.UpdateMetadata(ctx, mintKey, update, app.signers()...)
}

// Request fills a harvest request with the configured batch size, mode and
// secondary signer.
func (app *App) Request(mintKey solana.PublicKey, sources []solana.PublicKey) *harvest.Request {
	req := &harvest.Request{
		Mint:        mintKey,
		Sources:     sources,
		BatchSize:   app.config.BatchSize,
		Mode:        app.mode,
		Parallelism: app.config.Parallelism,
	}
	req.AuthoritySigner = app.authority
	return req
}

func (app *App) Harvester() *harvest.Harvester {
	return app.harvester
}
