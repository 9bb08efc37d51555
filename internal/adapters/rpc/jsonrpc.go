package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	reqID := uuid.NewString()
	started := time.Now()
	s.logger.Info("rpc request", "request_id", reqID, "method", req.Method)

	result, rpcErr := s.dispatchRPC(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		s.logger.Error("rpc failed",
			"request_id", reqID,
			"method", req.Method,
			"rpc_code", rpcErr.Code,
			"latency_ms", time.Since(started).Milliseconds())
	} else {
		s.logger.Info("rpc response",
			"request_id", reqID,
			"method", req.Method,
			"latency_ms", time.Since(started).Milliseconds())
	}
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	})
}

func (s *Server) dispatchRPC(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil
	case "session_status":
		return s.service.SessionStatus(), nil
	case "session_logout":
		if err := s.service.Logout(); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"ok": true}, nil
	case "identity_list":
		return s.service.ListIdentities(), nil
	case "identity_can_remove":
		return map[string]bool{"can_remove": s.service.CanRemoveIdentity()}, nil
	case "identity_link":
		return s.dispatchIdentityLink(ctx, rawParams)
	case "identity_unlink":
		return s.dispatchIdentityUnlink(ctx, rawParams)
	case "token_verify":
		return callWithSingleStringParam(rawParams, func(token string) (any, error) {
			return s.service.VerifyToken(ctx, token)
		})
	case "account_ensure":
		account, err := s.service.EnsureSmartAccount(ctx)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return account, nil
	case "balance_get":
		balance, ok := s.service.GetBalance()
		if !ok {
			return nil, &rpcError{Code: codeNoBalance, Message: "no balance has been read yet"}
		}
		return balance, nil
	case "balance_refresh":
		balance, err := s.service.RefreshBalance(ctx)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return balance, nil
	case "message_sign":
		return callWithSingleStringParam(rawParams, func(message string) (any, error) {
			signature, err := s.service.SignMessage(ctx, message)
			if err != nil {
				return nil, err
			}
			return map[string]string{"signature": signature}, nil
		})
	case "transfer_send":
		return s.dispatchTransferSend(ctx, rawParams)
	case "metrics_get":
		return s.service.GetMetrics(), nil
	}
	return nil, &rpcError{Code: -32601, Message: "method not found"}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: -32600, Message: "invalid request"},
	})
}
