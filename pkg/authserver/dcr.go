package authserver

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

const maxDCRBodyBytes = 64 * 1024

// dcrValidate checks the struct-level constraints on an incoming DCR
// payload; the RFC 8252 §7.3 scheme/host rule on each redirect_uri is
// still handled separately by validateRedirectURIs, since that's a
// per-element semantic check validator's struct tags can't express well.
var dcrValidate = validator.New()

// dcrRequest is RFC 7591's client metadata request body, trimmed to the
// fields InboundClient actually tracks.
type dcrRequest struct {
	RedirectURIs            []string `json:"redirect_uris" validate:"required,min=1,dive,required"`
	ClientName              string   `json:"client_name" validate:"max=256"`
	GrantTypes              []string `json:"grant_types" validate:"omitempty,dive,oneof=authorization_code refresh_token"`
	ResponseTypes           []string `json:"response_types" validate:"omitempty,dive,oneof=code"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method" validate:"omitempty,oneof=none client_secret_basic client_secret_post"`
	Scope                   string   `json:"scope"`
}

type dcrResponse struct {
	ClientID                string   `json:"client_id"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
}

type dcrError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// handleRegister serves POST /oauth/register ("/oauth/register
// (DCR for inbound clients)"). Newly registered clients are unapproved; the
// desktop shell's consent deep-link (out of scope here) flips Approved to
// true before the client's first authorize request can succeed.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body := http.MaxBytesReader(w, r.Body, maxDCRBodyBytes)
	var req dcrRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeDCRError(w, http.StatusBadRequest, "invalid_client_metadata", "request body is not valid JSON")
		return
	}

	if err := dcrValidate.Struct(req); err != nil {
		writeDCRError(w, http.StatusBadRequest, "invalid_client_metadata", err.Error())
		return
	}

	if err := validateRedirectURIs(req.RedirectURIs); err != nil {
		writeDCRError(w, http.StatusBadRequest, "invalid_redirect_uri", err.Error())
		return
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code", "refresh_token"}
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{"code"}
	}
	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "none"
	}

	now := s.clock.Now()
	client := domain.InboundClient{
		ClientID:                uuid.NewString(),
		RegistrationType:        domain.ClientRegisteredViaDCR,
		DisplayName:             req.ClientName,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		TokenEndpointAuthMethod: authMethod,
		Scope:                   req.Scope,
		Approved:                false,
		ConnectionMode:          domain.ConnectionFollowActive,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	created, err := s.clients.Create(r.Context(), client)
	if err != nil {
		writeDCRError(w, http.StatusInternalServerError, "server_error", "failed to register client")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(dcrResponse{
		ClientID:                created.ClientID,
		ClientIDIssuedAt:        now.Unix(),
		RedirectURIs:            created.RedirectURIs,
		GrantTypes:              created.GrantTypes,
		ResponseTypes:           created.ResponseTypes,
		TokenEndpointAuthMethod: created.TokenEndpointAuthMethod,
		Scope:                   created.Scope,
	})
}

func writeDCRError(w http.ResponseWriter, status int, code, description string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dcrError{Error: code, ErrorDescription: description})
}

// validateRedirectURIs enforces RFC 8252 §7.3: https is allowed for any
// host, http is allowed only for loopback hosts.
func validateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return errNoRedirectURIs
	}
	for _, uri := range uris {
		parsed, err := url.Parse(uri)
		if err != nil {
			return errInvalidRedirectURI
		}
		switch parsed.Scheme {
		case "https":
			continue
		case "http":
			if isLoopbackHost(parsed.Hostname()) {
				continue
			}
			return errInvalidRedirectURI
		default:
			return errInvalidRedirectURI
		}
	}
	return nil
}

var (
	errNoRedirectURIs     = dcrValidationError("at least one redirect_uri is required")
	errInvalidRedirectURI = dcrValidationError("redirect_uri must be https, or http with a loopback host")
)

type dcrValidationError string

func (e dcrValidationError) Error() string { return string(e) }
