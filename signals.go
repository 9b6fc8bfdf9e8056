package meld

import "github.com/zoobzio/capitan"

// Signals for compose lifecycle events.
var (
	ComposeStarted   = capitan.NewSignal("meld.compose.started", "Compose initiated")
	ComposeCompleted = capitan.NewSignal("meld.compose.completed", "Compose succeeded")
	ComposeFailed    = capitan.NewSignal("meld.compose.failed", "Compose failed")
)

// Warning signals. None of these abort a compose.
var (
	SourceLeadingSlash = capitan.NewSignal("meld.source.leading_slash",
		"Source name starts with '/'; unless the name contains a '/' it may be misread")
	SourceBucketPrefix = capitan.NewSignal("meld.source.bucket_prefix",
		"Source name starts with the bucket; names must not include the bucket")
	ClientOutdated = capitan.NewSignal("meld.client.outdated",
		"Storage client is running an outdated protocol revision")
)

// Field keys for event extraction.
var (
	FieldDestination = capitan.NewStringKey("destination")
	FieldBucket      = capitan.NewStringKey("bucket")
	FieldSource      = capitan.NewStringKey("source")
	FieldComponents  = capitan.NewIntKey("components")
	FieldMode        = capitan.NewStringKey("mode")
	FieldDuration    = capitan.NewDurationKey("duration")
	FieldError       = capitan.NewErrorKey("error")
)
