/*
Package tracing groups the pipeline work done for one navigation into a
trace of nested spans.

A browser verb starts the root span; every pipeline open below it,
including redirect hops and robots.txt fetches, starts a child span on the
context it was given. Finished spans are logged at debug level with their
trace, span and parent ids, so a redirect chain reads as one tree in the
logs.

	tracer := tracing.New(logger)
	span, ctx := tracer.StartSpan(ctx, "browser.open")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("url", u)

A nil *Tracer is valid and records nothing.
*/
package tracing
