package converter

import (
	"errors"
	"fmt"
	"strings"

	landscapeModel "github.com/Avi18971911/Reconstructor/internal/landscape/model"
	spanModel "github.com/Avi18971911/Reconstructor/internal/span/model"
)

const operationSeparator = "."

var ErrMalformedOperationName = errors.New("operation name must have a non-empty class and method segment")

// OperationName is a fully qualified operation split into its structural parts.
type OperationName struct {
	Package string
	Class   string
	Method  string
}

// ParseOperationName splits pkg.sub.ClassName.methodName on '.'. The last segment is the
// method, the one before it the class and everything before that the package, which is
// empty when there are exactly two segments.
func ParseOperationName(operationName string) (OperationName, error) {
	segments := strings.Split(operationName, operationSeparator)
	if len(segments) < 2 {
		return OperationName{}, fmt.Errorf("%w: %q", ErrMalformedOperationName, operationName)
	}
	classIndex := len(segments) - 2
	methodIndex := len(segments) - 1
	if segments[classIndex] == "" || segments[methodIndex] == "" {
		return OperationName{}, fmt.Errorf("%w: %q", ErrMalformedOperationName, operationName)
	}
	return OperationName{
		Package: strings.Join(segments[:classIndex], operationSeparator),
		Class:   segments[classIndex],
		Method:  segments[methodIndex],
	}, nil
}

// ToRecord maps a span to the landscape record describing where the invocation happened.
// It has no side effects and is safe for concurrent use.
func ToRecord(span spanModel.Span) (landscapeModel.LandscapeRecord, error) {
	operation, err := ParseOperationName(span.OperationName)
	if err != nil {
		return landscapeModel.LandscapeRecord{}, fmt.Errorf("failed to convert span to record: %w", err)
	}

	return landscapeModel.LandscapeRecord{
		LandscapeToken: span.LandscapeToken,
		Timestamp:      span.StartTime.Time().UnixMilli(),
		Node: landscapeModel.Node{
			IPAddress: span.HostIPAddress,
			HostName:  span.Hostname,
		},
		Application: landscapeModel.Application{
			Name:     span.AppName,
			PID:      span.AppPID,
			Language: span.AppLanguage,
		},
		Package: operation.Package,
		Class:   operation.Class,
		Method:  operation.Method,
	}, nil
}
