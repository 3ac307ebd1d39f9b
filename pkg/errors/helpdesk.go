package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

func init() {
	RegisterService(ServiceHelpdesk, "helpdesk")
}

// Helpdesk domain errors (service code 20).
//
// NotFound / InvalidTransition / Validation map to 4xx and are safe to show
// to callers. UpstreamTimeout and SyncInconsistency are operational faults.
var (
	// ErrSessionNotFound indicates the chat session does not exist or expired.
	ErrSessionNotFound = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryResource, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Session not found",
		MessageZH: "会话不存在",
	})

	// ErrIncidentNotFound indicates the incident id resolves to nothing.
	ErrIncidentNotFound = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryResource, 2),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Incident not found",
		MessageZH: "事件不存在",
	})

	// ErrKBEntryNotFound indicates the knowledge base entry does not exist.
	ErrKBEntryNotFound = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryResource, 3),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Knowledge base entry not found",
		MessageZH: "知识库条目不存在",
	})

	// ErrInvalidTransition indicates a status change outside the legal
	// transition table, including losing a compare-and-set race.
	ErrInvalidTransition = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryConflict, 1),
		HTTP:      http.StatusConflict,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Illegal incident status transition",
		MessageZH: "事件状态流转不合法",
	})

	// ErrValidation indicates domain level input validation failed.
	ErrValidation = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Validation failed",
		MessageZH: "校验失败",
	})

	// ErrUpstreamTimeout indicates the embedding upstream did not answer
	// within its deadline.
	ErrUpstreamTimeout = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryTimeout, 1),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Upstream model timeout",
		MessageZH: "上游模型超时",
	})

	// ErrSyncInconsistency indicates the three KB representations diverged
	// and a compensating write could not restore them.
	ErrSyncInconsistency = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryInternal, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Knowledge base representations are inconsistent",
		MessageZH: "知识库多副本不一致",
	})

	// ErrVectorStore indicates a vector index operation failed.
	ErrVectorStore = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryDatabase, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Vector store operation failed",
		MessageZH: "向量库操作失败",
	})

	// ErrExportFile indicates a flat text export read or write failed.
	ErrExportFile = Register(&Errno{
		Code:      MakeCode(ServiceHelpdesk, CategoryInternal, 2),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Knowledge base export file operation failed",
		MessageZH: "知识库导出文件操作失败",
	})
)
