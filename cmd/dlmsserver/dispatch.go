package main

import (
	"go.uber.org/zap"

	"github.com/cybroslabs/dlms-go/association"
	"github.com/cybroslabs/dlms-go/dlmserr"
	"github.com/cybroslabs/dlms-go/xdlms"
)

// session pumps one established association until the client releases or
// the transport fails, dispatching each request APDU against reg.
type session struct {
	assoc  *association.Server
	reg    *registry
	logger *zap.SugaredLogger
}

func (s *session) run() {
	for {
		apdu, err := s.assoc.Receive()
		if err != nil {
			if kind, ok := dlmserr.KindOf(err); !ok || kind != dlmserr.Transport {
				s.logger.Warnw("receive failed", "error", err)
			}
			return
		}
		resp, err := s.handle(apdu)
		if err != nil {
			s.logger.Warnw("dispatch failed", "error", err)
			return
		}
		if resp == nil {
			continue // e.g. unconfirmed write, nothing to answer
		}
		if err := s.assoc.Respond(resp); err != nil {
			s.logger.Warnw("respond failed", "error", err)
			return
		}
	}
}

func (s *session) handle(apdu []byte) ([]byte, error) {
	if len(apdu) == 0 {
		return nil, dlmserr.New(dlmserr.Codec, "empty apdu")
	}
	switch xdlms.CosemTag(apdu[0]) {
	case xdlms.TagGetRequest:
		return s.handleGet(apdu)
	case xdlms.TagSetRequest:
		return s.handleSet(apdu)
	case xdlms.TagActionRequest:
		return s.handleAction(apdu)
	default:
		return nil, dlmserr.Newf(dlmserr.Protocol, "unsupported request tag %#x", apdu[0])
	}
}

func (s *session) handleGet(apdu []byte) ([]byte, error) {
	req, nextBlock, err := xdlms.DecodeGetRequest(apdu)
	if err != nil {
		return nil, err
	}
	if nextBlock != nil {
		// no long-get transfer is ever started below, so a get-request-next
		// always means there is nothing left to send.
		resp := &xdlms.GetResponse{InvokeID: req.InvokeID, IsBlock: true, LastBlock: true, BlockNumber: *nextBlock, HasBlockError: true, BlockError: xdlms.AccessOtherReason}
		return xdlms.EncodeGetResponse(resp)
	}
	results := make([]xdlms.GetResult, len(req.Items))
	for i, item := range req.Items {
		v, res := s.reg.get(item)
		if res != xdlms.AccessSuccess {
			results[i] = xdlms.GetResult{IsErr: true, Error: res}
			continue
		}
		results[i] = xdlms.GetResult{Value: v}
	}
	return xdlms.EncodeGetResponse(&xdlms.GetResponse{InvokeID: req.InvokeID, Results: results})
}

func (s *session) handleSet(apdu []byte) ([]byte, error) {
	req, err := xdlms.DecodeSetRequest(apdu)
	if err != nil {
		return nil, err
	}
	results := make([]xdlms.AccessResultTag, len(req.Items))
	for i, item := range req.Items {
		results[i] = s.reg.put(item, req.Values[i])
	}
	return xdlms.EncodeSetResponse(&xdlms.SetResponse{InvokeID: req.InvokeID, Results: results}), nil
}

func (s *session) handleAction(apdu []byte) ([]byte, error) {
	req, err := xdlms.DecodeActionRequest(apdu)
	if err != nil {
		return nil, err
	}
	result := s.reg.invoke(req.Method)
	return xdlms.EncodeActionResponse(&xdlms.ActionResponse{InvokeID: req.InvokeID, Result: result})
}
