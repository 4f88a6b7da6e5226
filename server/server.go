package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/egaotan/solana-token2022/config"
	"github.com/egaotan/solana-token2022/harvest"
	"github.com/egaotan/solana-token2022/mint"
	"github.com/egaotan/solana-token2022/store"
	"github.com/egaotan/solana-token2022/utils"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Minter interface {
	Create(ctx context.Context, bp *mint.Blueprint, opts mint.Options) (*mint.Result, error)
}

type Harvester interface {
	WithdrawFromAccounts(ctx context.Context, req *harvest.Request) (*harvest.Run, error)
	HarvestToMint(ctx context.Context, req *harvest.Request) (*harvest.Run, error)
	WithdrawFromMint(ctx context.Context, req *harvest.Request) (*harvest.Run, error)
	Withheld(ctx context.Context, mint solana.PublicKey, sources []solana.PublicKey) ([]*harvest.Holding, error)
	Run(id string) (*harvest.Run, bool)
}

// Archive looks up persisted mints and runs that are no longer in memory.
type Archive interface {
	GetMint(mint string) (*store.MintRecord, error)
	GetHarvestRun(id string) (*store.HarvestRun, error)
	GetHarvestRunsByMint(mint string) ([]*store.HarvestRun, error)
}

// Defaults fill harvest requests that leave the fields out.
type Defaults struct {
	BatchSize   int
	Mode        harvest.Mode
	Parallelism int
}

type Server struct {
	ctx        context.Context
	logger     *log.Logger
	listen     string
	caller     solana.PublicKey
	minter     Minter
	harvester  Harvester
	archive    Archive
	controller Controller
	authority  *solana.PrivateKey
	defaults   Defaults
	httpServer *http.Server
}

func NewServer(ctx context.Context, listen string, caller solana.PublicKey, minter Minter, harvester Harvester) *Server {
	return &Server{
		ctx:       ctx,
		logger:    utils.NewLog(config.LogPath, config.ServerLog),
		listen:    listen,
		caller:    caller,
		minter:    minter,
		harvester: harvester,
		defaults: Defaults{
			BatchSize:   harvest.DefaultBatchSize,
			Mode:        harvest.Sequential,
			Parallelism: harvest.DefaultParallelism,
		},
	}
}

func (s *Server) SetArchive(archive Archive) {
	s.archive = archive
}

// SetAuthority adds a secondary signer to every mint and harvest request.
func (s *Server) SetAuthority(authority *solana.PrivateKey) {
	s.authority = authority
}

func (s *Server) SetDefaults(defaults Defaults) {
	s.defaults = defaults
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	g := router.Group("/api")
	g.POST("/mint", s.createMint)
	g.POST("/harvest/accounts", s.withdrawFromAccounts)
	g.POST("/harvest/mint", s.harvestToMint)
	g.POST("/harvest/withdraw", s.withdrawFromMint)
	g.GET("/mint/:mint", s.getMint)
	g.GET("/harvest", s.listRuns)
	g.GET("/harvest/:id", s.getRun)
	g.POST("/withheld", s.withheld)
	g.POST("/mint/:mint/authority", s.setAuthority)
	g.POST("/mint/:mint/supply", s.mintTo)
	g.POST("/mint/:mint/metadata", s.updateMetadata)
	return router
}

func (s *Server) StartRPC() {
	s.httpServer = &http.Server{
		Addr:    s.listen,
		Handler: s.Router(),
	}
	s.logger.Printf("start rpc server on %s......", s.listen)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("ListenAndServe: %s", err.Error())
		}
	}()
}

func (s *Server) StopRPC() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Printf("shutdown err: %s", err.Error())
	}
	s.logger.Printf("rpc server has stopped......")
}
