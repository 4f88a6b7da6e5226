package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/egaotan/solana-token2022/mint"
	"github.com/egaotan/solana-token2022/token2022"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
)

// Controller changes existing mints.
type Controller interface {
	SetAuthority(ctx context.Context, mint solana.PublicKey, t token2022.AuthorityType, newAuthority *solana.PublicKey, signers ...solana.PrivateKey) (*mint.Change, error)
	MintTo(ctx context.Context, mint solana.PublicKey, amount uint64, owner *solana.PublicKey, signers ...solana.PrivateKey) (*mint.Change, error)
	UpdateMetadata(ctx context.Context, mint solana.PublicKey, update *mint.MetadataUpdate, signers ...solana.PrivateKey) (*mint.Change, error)
}

type AuthorityRequest struct {
	Type         string `json:"type" binding:"required"`
	NewAuthority string `json:"new_authority"`
	// Revoke must be set to drop the authority for good.
	Revoke bool `json:"revoke"`
}

type SupplyRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
	Owner  string `json:"owner"`
}

type MetadataRequest struct {
	Name            string            `json:"name"`
	Symbol          string            `json:"symbol"`
	Uri             string            `json:"uri"`
	Fields          []token2022.Field `json:"fields"`
	UpdateAuthority string            `json:"update_authority"`
	Immutable       bool              `json:"immutable"`
}

type ChangeResponse struct {
	Mint      string `json:"mint"`
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Account   string `json:"account,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	TopUp     uint64 `json:"top_up,omitempty"`
}

func (s *Server) SetController(controller Controller) {
	s.controller = controller
}

func (s *Server) signers() []solana.PrivateKey {
	if s.authority == nil {
		return nil
	}
	return []solana.PrivateKey{*s.authority}
}

func (s *Server) changed(c *gin.Context, change *mint.Change, err error) {
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	resp := &ChangeResponse{
		Mint:      change.Mint.String(),
		Signature: change.Signature.String(),
		Slot:      change.Slot,
		Amount:    change.Amount,
		TopUp:     change.TopUp,
	}
	if !change.Account.IsZero() {
		resp.Account = change.Account.String()
	}
	c.JSON(http.StatusOK, resp)
}

// controlled resolves the mint in the path, failing the request when mint
// controls are not configured.
func (s *Server) controlled(c *gin.Context) (solana.PublicKey, bool) {
	if s.controller == nil {
		s.fail(c, errNoController, nil)
		return solana.PublicKey{}, false
	}
	key, err := parseKey("mint", c.Param("mint"))
	if err == nil && key == nil {
		err = fmt.Errorf("%w: empty mint", errBadKey)
	}
	if err != nil {
		s.fail(c, err, nil)
		return solana.PublicKey{}, false
	}
	return *key, true
}

func (s *Server) setAuthority(c *gin.Context) {
	mintKey, ok := s.controlled(c)
	if !ok {
		return
	}
	body := &AuthorityRequest{}
	if err := c.ShouldBindJSON(body); err != nil {
		s.fail(c, fmt.Errorf("%w: %s", mint.ErrInvalidBlueprint, err), nil)
		return
	}
	t, err := token2022.ParseAuthorityType(body.Type)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	next, err := parseKey("new_authority", body.NewAuthority)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	if next == nil && !body.Revoke {
		s.fail(c, fmt.Errorf("%w: new_authority or revoke is required", errBadKey), nil)
		return
	}
	if next != nil && body.Revoke {
		s.fail(c, fmt.Errorf("%w: new_authority and revoke are exclusive", errBadKey), nil)
		return
	}
	change, err := s.controller.SetAuthority(s.ctx, mintKey, t, next, s.signers()...)
	s.changed(c, change, err)
}

func (s *Server) mintTo(c *gin.Context) {
	mintKey, ok := s.controlled(c)
	if !ok {
		return
	}
	body := &SupplyRequest{}
	if err := c.ShouldBindJSON(body); err != nil {
		s.fail(c, fmt.Errorf("%w: %s", mint.ErrInvalidBlueprint, err), nil)
		return
	}
	owner, err := parseKey("owner", body.Owner)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	change, err := s.controller.MintTo(s.ctx, mintKey, body.Amount, owner, s.signers()...)
	s.changed(c, change, err)
}

func (s *Server) updateMetadata(c *gin.Context) {
	mintKey, ok := s.controlled(c)
	if !ok {
		return
	}
	body := &MetadataRequest{}
	if err := c.ShouldBindJSON(body); err != nil {
		s.fail(c, fmt.Errorf("%w: %s", mint.ErrInvalidBlueprint, err), nil)
		return
	}
	update := &mint.MetadataUpdate{
		Name:      body.Name,
		Symbol:    body.Symbol,
		Uri:       body.Uri,
		Fields:    body.Fields,
		Immutable: body.Immutable,
	}
	var err error
	if update.UpdateAuthority, err = parseKey("update_authority", body.UpdateAuthority); err != nil {
		s.fail(c, err, nil)
		return
	}
	change, err := s.controller.UpdateMetadata(s.ctx, mintKey, update, s.signers()...)
	s.changed(c, change, err)
}
