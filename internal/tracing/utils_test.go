package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailsetup/internal/utils"
)

func TestSetDefaultServiceSpanTags(t *testing.T) {
	tracer := mocktracer.New()
	span := tracer.StartSpan("test").(*mocktracer.MockSpan)
	ctx := utils.WithCustomContext(context.Background(), &utils.CustomContext{AppSource: "mailsetup", IdentityId: "identity-1"})

	SetDefaultServiceSpanTags(ctx, span)
	TagEntity(span, "")
	TagProvider(span, "gmail")

	assert.Equal(t, "identity-1", span.Tag(SpanTagIdentityId))
	assert.Equal(t, "mailsetup", span.Tag(SpanTagAppSource))
	assert.Equal(t, SpanTagComponentService, span.Tag(SpanTagComponent))
	assert.Equal(t, "gmail", span.Tag(SpanTagProvider))
	assert.Nil(t, span.Tag(SpanTagEntityId))
}

func TestTraceErr(t *testing.T) {
	tracer := mocktracer.New()
	span := tracer.StartSpan("test").(*mocktracer.MockSpan)

	TraceErr(span, nil)
	assert.Nil(t, span.Tag("error"))

	TraceErr(span, errors.New("imap login failed"))
	assert.Equal(t, true, span.Tag("error"))
	assert.NotEmpty(t, span.Logs())
}
