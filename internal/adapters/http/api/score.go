package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/okian/posfit/internal/domain/model"
)

const maxScoreBody = 1 << 20

// scoreRequest is the body of POST /score. Null attributes are treated as missing.
type scoreRequest struct {
	PlayerID        string              `json:"player_id"`
	NaturalPosition string              `json:"natural_position"`
	Overall         *float64            `json:"overall"`
	Attributes      map[string]*float64 `json:"attributes"`
}

func (s scoreRequest) validate() error {
	if strings.TrimSpace(s.PlayerID) == "" {
		return errors.New("missing player_id")
	}
	return nil
}

func (s scoreRequest) player() model.Player {
	p := model.Player{
		ID:              strings.TrimSpace(s.PlayerID),
		NaturalPosition: s.NaturalPosition,
		Overall:         s.Overall,
		Attributes:      make(map[string]float64, len(s.Attributes)),
	}
	for k, v := range s.Attributes {
		if v != nil && !math.IsNaN(*v) {
			p.Attributes[k] = *v
		}
	}
	return p
}

// ScoreHandler scores players on demand.
type ScoreHandler struct {
	deps Dependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps Dependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleScore handles POST /score requests. The result is not stored.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Score(r.Context(), req.player()))
}
