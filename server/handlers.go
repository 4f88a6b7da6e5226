package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/egaotan/solana-token2022/harvest"
	"github.com/egaotan/solana-token2022/mint"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	errBadKey       = errors.New("server: invalid public key")
	errNoController = errors.New("server: mint controls are not configured")
)

type ErrorResponse struct {
	Error string          `json:"error"`
	Run   *harvest.Report `json:"run,omitempty"`
}

type MintResponse struct {
	Mint          string   `json:"mint"`
	Signature     string   `json:"signature"`
	Slot          uint64   `json:"slot"`
	OwnerAccount  string   `json:"owner_account,omitempty"`
	MintSpace     int      `json:"mint_space"`
	MetadataSpace int      `json:"metadata_space"`
	Rent          uint64   `json:"rent"`
	RawSupply     uint64   `json:"raw_supply"`
	Steps         []string `json:"steps"`
	Skipped       []string `json:"skipped,omitempty"`
}

type HarvestRequest struct {
	Mint        string   `json:"mint" binding:"required"`
	Sources     []string `json:"sources"`
	Owner       string   `json:"owner"`
	Authority   string   `json:"authority"`
	BatchSize   int      `json:"batch_size"`
	Mode        string   `json:"mode"`
	Parallelism int      `json:"parallelism"`
	SkipEmpty   bool     `json:"skip_empty"`
}

type WithheldResponse struct {
	Mint     string             `json:"mint"`
	Total    uint64             `json:"total"`
	Holdings []*harvest.Holding `json:"holdings"`
}

func status(err error) int {
	var batchErr *harvest.BatchError
	switch {
	case errors.Is(err, errBadKey),
		errors.Is(err, mint.ErrInvalidBlueprint),
		errors.Is(err, mint.ErrNoInitializer),
		errors.Is(err, mint.ErrSupplyOverflow),
		errors.Is(err, token2022.ErrUnknownExtension),
		errors.Is(err, harvest.ErrInvalidRequest),
		errors.Is(err, harvest.ErrNoTransferFee),
		errors.Is(err, harvest.ErrNothingWithheld),
		errors.Is(err, token2022.ErrUnknownAuthority),
		errors.Is(err, token2022.ErrUnsupportedAuthority),
		errors.Is(err, token2022.ErrNoAuthority),
		errors.Is(err, token2022.ErrExtensionMissing),
		errors.Is(err, token2022.ErrNotMint),
		errors.Is(err, mint.ErrNoMetadata),
		errors.Is(err, mint.ErrNothingToUpdate):
		return http.StatusBadRequest
	case errors.Is(err, mint.ErrMissingSigner),
		errors.Is(err, harvest.ErrAuthorityMismatch),
		errors.Is(err, harvest.ErrMissingSigner):
		return http.StatusForbidden
	case errors.As(err, &batchErr):
		return http.StatusBadGateway
	case errors.Is(err, errNoArchive),
		errors.Is(err, errNoController):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error, run *harvest.Run) {
	s.logger.Printf("%s %s err: %s", c.Request.Method, c.Request.URL.Path, err.Error())
	resp := &ErrorResponse{Error: err.Error()}
	if run != nil {
		resp.Run = run.Report()
	}
	c.JSON(status(err), resp)
}

func (s *Server) createMint(c *gin.Context) {
	file := &mint.BlueprintFile{}
	if err := c.ShouldBindJSON(file); err != nil {
		s.fail(c, fmt.Errorf("%w: %s", mint.ErrInvalidBlueprint, err), nil)
		return
	}
	bp, err := file.Blueprint(s.caller)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	opts := mint.Options{}
	if s.authority != nil {
		opts.Signers = append(opts.Signers, *s.authority)
	}
	result, err := s.minter.Create(s.ctx, bp, opts)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	resp := &MintResponse{
		Mint:      result.Mint.String(),
		Signature: result.Signature.String(),
		Slot:      result.Slot,
	}
	if plan := result.Plan; plan != nil {
		resp.MintSpace = plan.Size.MintSpace
		resp.MetadataSpace = plan.Size.MetadataSpace
		resp.Rent = plan.Rent
		resp.RawSupply = plan.RawSupply
		if !plan.OwnerAccount.IsZero() {
			resp.OwnerAccount = plan.OwnerAccount.String()
		}
		for _, kind := range plan.Kinds() {
			resp.Steps = append(resp.Steps, kind.String())
		}
		for _, kind := range plan.Skipped {
			resp.Skipped = append(resp.Skipped, kind.String())
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseKey(field, value string) (*solana.PublicKey, error) {
	if value == "" {
		return nil, nil
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", errBadKey, field, value)
	}
	return &key, nil
}

func (s *Server) harvestRequest(c *gin.Context) (*harvest.Request, error) {
	body := &HarvestRequest{}
	if err := c.ShouldBindJSON(body); err != nil {
		return nil, fmt.Errorf("%w: %s", harvest.ErrInvalidRequest, err)
	}
	mintKey, err := parseKey("mint", body.Mint)
	if err != nil {
		return nil, err
	}
	req := &harvest.Request{
		Mint:        *mintKey,
		Sources:     make([]solana.PublicKey, 0, len(body.Sources)),
		BatchSize:   body.BatchSize,
		Parallelism: body.Parallelism,
		Mode:        s.defaults.Mode,
		SkipEmpty:   body.SkipEmpty,
	}
	for _, source := range body.Sources {
		key, err := parseKey("source", source)
		if err != nil {
			return nil, err
		}
		if key != nil {
			req.Sources = append(req.Sources, *key)
		}
	}
	if req.Owner, err = parseKey("owner", body.Owner); err != nil {
		return nil, err
	}
	if req.Authority, err = parseKey("authority", body.Authority); err != nil {
		return nil, err
	}
	if body.Mode != "" {
		if req.Mode, err = harvest.ParseMode(body.Mode); err != nil {
			return nil, err
		}
	}
	if req.BatchSize == 0 {
		req.BatchSize = s.defaults.BatchSize
	}
	if req.Parallelism == 0 {
		req.Parallelism = s.defaults.Parallelism
	}
	req.AuthoritySigner = s.authority
	return req, nil
}

type operation func(ctx context.Context, req *harvest.Request) (*harvest.Run, error)

func (s *Server) harvest(c *gin.Context, op operation) {
	req, err := s.harvestRequest(c)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	run, err := op(s.ctx, req)
	if err != nil {
		s.fail(c, err, run)
		return
	}
	c.JSON(http.StatusOK, run.Report())
}

func (s *Server) withdrawFromAccounts(c *gin.Context) {
	s.harvest(c, s.harvester.WithdrawFromAccounts)
}

func (s *Server) harvestToMint(c *gin.Context) {
	s.harvest(c, s.harvester.HarvestToMint)
}

func (s *Server) withdrawFromMint(c *gin.Context) {
	s.harvest(c, s.harvester.WithdrawFromMint)
}

func (s *Server) getRun(c *gin.Context) {
	id := c.Param("id")
	if run, ok := s.harvester.Run(id); ok {
		c.JSON(http.StatusOK, run.Report())
		return
	}
	if s.archive != nil {
		record, err := s.archive.GetHarvestRun(id)
		if err == nil {
			c.JSON(http.StatusOK, record)
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.fail(c, err, nil)
			return
		}
	}
	c.JSON(http.StatusNotFound, &ErrorResponse{Error: fmt.Sprintf("run %s not found", id)})
}

func (s *Server) withheld(c *gin.Context) {
	req, err := s.harvestRequest(c)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	holdings, err := s.harvester.Withheld(s.ctx, req.Mint, req.Sources)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	resp := &WithheldResponse{Mint: req.Mint.String(), Holdings: holdings}
	for _, holding := range holdings {
		resp.Total += holding.Withheld
	}
	c.JSON(http.StatusOK, resp)
}

var errNoArchive = errors.New("server: no store configured")

func (s *Server) getMint(c *gin.Context) {
	if s.archive == nil {
		s.fail(c, errNoArchive, nil)
		return
	}
	key := c.Param("mint")
	record, err := s.archive.GetMint(key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, &ErrorResponse{Error: fmt.Sprintf("mint %s not found", key)})
		return
	}
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, record)
}

// listRuns returns the persisted runs of the mint in the query, oldest first.
func (s *Server) listRuns(c *gin.Context) {
	if s.archive == nil {
		s.fail(c, errNoArchive, nil)
		return
	}
	key, err := parseKey("mint", c.Query("mint"))
	if err == nil && key == nil {
		err = fmt.Errorf("%w: mint is required", errBadKey)
	}
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	runs, err := s.archive.GetHarvestRunsByMint(key.String())
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, runs)
}
