package rpc

import (
	"context"
	"encoding/json"

	"crosspay/go-backend/pkg/models"
)

func (s *Server) dispatchIdentityLink(ctx context.Context, rawParams json.RawMessage) (any, *rpcError) {
	kind, err := decodeKindParam(rawParams)
	if err != nil {
		return nil, rpcInvalidParams()
	}
	li, linkErr := s.service.LinkIdentity(ctx, kind)
	if linkErr != nil {
		return nil, mapServiceError(linkErr)
	}
	return li, nil
}

func (s *Server) dispatchIdentityUnlink(ctx context.Context, rawParams json.RawMessage) (any, *rpcError) {
	kind, externalID, err := decodeUnlinkParams(rawParams)
	if err != nil {
		return nil, rpcInvalidParams()
	}
	if unlinkErr := s.service.UnlinkIdentity(ctx, kind, externalID); unlinkErr != nil {
		return nil, mapServiceError(unlinkErr)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) dispatchTransferSend(ctx context.Context, rawParams json.RawMessage) (any, *rpcError) {
	req, err := decodeTransferParams(rawParams)
	if err != nil {
		return nil, rpcInvalidParams()
	}
	result, sendErr := s.service.SendTransfer(ctx, req)
	if sendErr != nil {
		// The result still identifies the transfer and, for unknown
		// outcomes, distinguishes "maybe executed" from "failed".
		rpcErr := mapServiceError(sendErr)
		rpcErr.Message = rpcErr.Message + " (transfer " + result.TransferID + ")"
		return nil, rpcErr
	}
	return result, nil
}

func callWithSingleStringParam(rawParams json.RawMessage, call func(string) (any, error)) (any, *rpcError) {
	param, err := decodeSingleStringParam(rawParams)
	if err != nil {
		return nil, rpcInvalidParams()
	}
	result, err := call(param)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return result, nil
}

func decodeSingleStringParam(raw json.RawMessage) (string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 && arr[0] != "" {
		return arr[0], nil
	}
	return "", errInvalidParams
}

func decodeKindParam(raw json.RawMessage) (models.IdentityKind, error) {
	param, err := decodeSingleStringParam(raw)
	if err != nil {
		return "", err
	}
	kind, ok := models.ParseIdentityKind(param)
	if !ok {
		return "", errInvalidParams
	}
	return kind, nil
}

func decodeUnlinkParams(raw json.RawMessage) (models.IdentityKind, string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 2 || arr[0] == "" || arr[1] == "" {
		return "", "", errInvalidParams
	}
	kind, ok := models.ParseIdentityKind(arr[0])
	if !ok {
		return "", "", errInvalidParams
	}
	return kind, arr[1], nil
}

func decodeTransferParams(raw json.RawMessage) (models.TransferRequest, error) {
	// Preferred shape: { "amount": "...", "recipient": "0x..." }
	var req models.TransferRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.Amount != "" && req.Recipient != "" {
		return req, nil
	}

	// Alternative shape: [ amount, recipient ]
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 2 && arr[0] != "" && arr[1] != "" {
		return models.TransferRequest{Amount: arr[0], Recipient: arr[1]}, nil
	}
	return models.TransferRequest{}, errInvalidParams
}
