package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"go.uber.org/zap"
)

// handle answers server-to-client requests and notifications.
func (c *Client) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case protocol.MethodWorkspaceSemanticTokensRefresh:
		c.log.Debug("semantic tokens refresh requested")
		c.broadcastRefresh()
		return nil, nil

	case protocol.ServerWindowLogMessage, protocol.ServerWindowShowMessage:
		// ShowMessageParams and LogMessageParams have the same shape.
		var p protocol.LogMessageParams
		if err := unmarshalParams(req, &p); err != nil {
			return nil, err
		}
		c.logMessage(p)
		return nil, nil

	case protocol.ServerClientRegisterCapability,
		protocol.ServerWindowWorkDoneProgressCreate,
		protocol.MethodProgress,
		protocol.MethodLogTrace,
		protocol.ServerTelemetryEvent:
		return nil, nil
	}

	if req.Notif {
		return nil, nil
	}
	c.log.Debug("unsupported server request", zap.String("method", req.Method))
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("method not supported: %s", req.Method),
	}
}

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

// logMessage re-logs a server message at the matching level.
func (c *Client) logMessage(p protocol.LogMessageParams) {
	log := c.log.Named("server")
	switch p.Type {
	case protocol.MessageTypeError:
		log.Error(p.Message)
	case protocol.MessageTypeWarning:
		log.Warn(p.Message)
	case protocol.MessageTypeInfo:
		log.Info(p.Message)
	default:
		log.Debug(p.Message)
	}
}
