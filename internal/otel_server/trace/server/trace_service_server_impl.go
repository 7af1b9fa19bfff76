package server

import (
	"context"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	spanModel "github.com/Avi18971911/Reconstructor/internal/span/model"
	"github.com/Avi18971911/Reconstructor/internal/stream"
	"github.com/dgraph-io/ristretto"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonV1 "go.opentelemetry.io/proto/otlp/common/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
)

const (
	LandscapeTokenAttribute = "landscape.token"
	HostNameAttribute       = "host.name"
	HostIPAttribute         = "host.ip"
	ServiceNameAttribute    = "service.name"
	ProcessPIDAttribute     = "process.pid"
	LanguageAttribute       = "telemetry.sdk.language"
	CodeNamespaceAttribute  = "code.namespace"
	CodeFunctionAttribute   = "code.function"
)

type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	publisher   stream.Publisher
	tracesTopic string
	seenSpans   *ristretto.Cache
	seenMu      sync.Mutex
	dedupeTTL   time.Duration
	logger      *zap.Logger
}

func NewTraceServiceServerImpl(
	logger *zap.Logger,
	publisher stream.Publisher,
	tracesTopic string,
	seenSpans *ristretto.Cache,
	dedupeTTL time.Duration,
) *TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl", zap.String("topic", tracesTopic))
	return &TraceServiceServerImpl{
		publisher:   publisher,
		tracesTopic: tracesTopic,
		seenSpans:   seenSpans,
		dedupeTTL:   dedupeTTL,
		logger:      logger,
	}
}

// Export publishes every span onto the traces topic. Spans are accepted even when
// publishing fails, since exporters retrying would only resend the same spans.
func (tss *TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	for _, resourceSpan := range req.ResourceSpans {
		resourceAttributes := getResourceAttributes(resourceSpan)
		token := getStringAttribute(resourceAttributes, LandscapeTokenAttribute)
		if token == "" {
			tss.logger.Warn(
				"Dropping resource spans without landscape token",
				zap.String("service_name", getStringAttribute(resourceAttributes, ServiceNameAttribute)),
			)
			continue
		}

		for _, typedSpan := range getTypedSpans(resourceSpan, resourceAttributes) {
			if tss.isDuplicate(typedSpan) {
				continue
			}
			tss.publish(ctx, typedSpan)
		}
	}

	return &protoTrace.ExportTraceServiceResponse{}, nil
}

func (tss *TraceServiceServerImpl) publish(ctx context.Context, span spanModel.Span) {
	msg, err := stream.Encode(span.LandscapeToken, span)
	if err != nil {
		tss.logger.Error("Failed to encode span", zap.Error(err))
		return
	}
	if err := tss.publisher.Publish(ctx, tss.tracesTopic, msg); err != nil {
		tss.logger.Error(
			"Failed to publish span",
			zap.String("trace_id", span.TraceID),
			zap.String("span_id", span.SpanID),
			zap.Error(err),
		)
	}
}

func (tss *TraceServiceServerImpl) isDuplicate(span spanModel.Span) bool {
	if span.TraceID == "" && span.SpanID == "" {
		return false
	}
	key := span.TraceID + ":" + span.SpanID
	tss.seenMu.Lock()
	defer tss.seenMu.Unlock()
	if _, found := tss.seenSpans.Get(key); found {
		return true
	}
	// sets are buffered, Wait makes the key visible to the next Get
	tss.seenSpans.SetWithTTL(key, struct{}{}, 1, tss.dedupeTTL)
	tss.seenSpans.Wait()
	return false
}

func getResourceAttributes(resourceSpan *v1.ResourceSpans) map[string]*commonV1.AnyValue {
	attributes := make(map[string]*commonV1.AnyValue)
	if resourceSpan.Resource == nil {
		return attributes
	}
	for _, attr := range resourceSpan.Resource.Attributes {
		attributes[attr.Key] = attr.Value
	}
	return attributes
}

func getTypedSpans(resourceSpan *v1.ResourceSpans, resourceAttributes map[string]*commonV1.AnyValue) []spanModel.Span {
	var typedSpans []spanModel.Span
	for _, scopeSpan := range resourceSpan.ScopeSpans {
		for _, span := range scopeSpan.Spans {
			typedSpans = append(typedSpans, getTypedSpan(span, resourceAttributes))
		}
	}
	return typedSpans
}

func getTypedSpan(span *v1.Span, resourceAttributes map[string]*commonV1.AnyValue) spanModel.Span {
	return spanModel.Span{
		LandscapeToken: getStringAttribute(resourceAttributes, LandscapeTokenAttribute),
		TraceID:        hex.EncodeToString(span.TraceId),
		SpanID:         hex.EncodeToString(span.SpanId),
		StartTime:      spanModel.TimestampFromUnixNano(span.StartTimeUnixNano),
		HostIPAddress:  getStringAttribute(resourceAttributes, HostIPAttribute),
		Hostname:       getStringAttribute(resourceAttributes, HostNameAttribute),
		AppName:        getStringAttribute(resourceAttributes, ServiceNameAttribute),
		AppPID:         getIntAttribute(resourceAttributes, ProcessPIDAttribute),
		AppLanguage:    getStringAttribute(resourceAttributes, LanguageAttribute),
		OperationName:  getOperationName(span),
	}
}

// getOperationName prefers the code.* attributes, which carry the fully qualified name,
// over the span name.
func getOperationName(span *v1.Span) string {
	attributes := make(map[string]*commonV1.AnyValue)
	for _, attr := range span.Attributes {
		attributes[attr.Key] = attr.Value
	}
	namespace := getStringAttribute(attributes, CodeNamespaceAttribute)
	function := getStringAttribute(attributes, CodeFunctionAttribute)
	if namespace != "" && function != "" {
		return namespace + "." + function
	}
	return span.Name
}

func getStringAttribute(attributes map[string]*commonV1.AnyValue, key string) string {
	value, ok := attributes[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.Value.(type) {
	case *commonV1.AnyValue_StringValue:
		return v.StringValue
	case *commonV1.AnyValue_IntValue:
		return strconv.FormatInt(v.IntValue, 10)
	case *commonV1.AnyValue_ArrayValue:
		// host.ip is a list of addresses, the first one identifies the node
		if v.ArrayValue != nil && len(v.ArrayValue.Values) > 0 {
			return getStringAttribute(map[string]*commonV1.AnyValue{key: v.ArrayValue.Values[0]}, key)
		}
	}
	return ""
}

func getIntAttribute(attributes map[string]*commonV1.AnyValue, key string) int64 {
	value, ok := attributes[key]
	if !ok || value == nil {
		return 0
	}
	switch v := value.Value.(type) {
	case *commonV1.AnyValue_IntValue:
		return v.IntValue
	case *commonV1.AnyValue_StringValue:
		parsed, err := strconv.ParseInt(v.StringValue, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}
