// Package mocks provides mock implementations for testing the notification dispatch pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the core ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockQueue := mocks.NewMockQueueRepository(ctrl)
//	mockQueue.EXPECT().Release(gomock.Any(), int64(7)).Return(nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// GetByID, MarkExhausted, MarkProcessing, MarkSent, RecordFailure
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/notify-dispatch/internal/core JobRepository

// Generate mock for QueueRepository interface from internal/core package.
// This creates MockQueueRepository with methods for all QueueRepository interface methods:
// Archive, Dequeue, Enqueue, PromoteScheduled, Release, Stats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_repository_mock.go github.com/target/notify-dispatch/internal/core QueueRepository

// Generate mock for StatusHistoryRepository interface from internal/core package.
// This creates MockStatusHistoryRepository with methods for all StatusHistoryRepository interface methods:
// Append
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=status_history_repository_mock.go github.com/target/notify-dispatch/internal/core StatusHistoryRepository

// Generate mock for TemplateRepository interface from internal/core package.
// This creates MockTemplateRepository with methods for all TemplateRepository interface methods:
// FindBest
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=template_repository_mock.go github.com/target/notify-dispatch/internal/core TemplateRepository

// Generate mock for TemplateCache interface from internal/core package.
// This creates MockTemplateCache with methods for all TemplateCache interface methods:
// Get, Set
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=template_cache_mock.go github.com/target/notify-dispatch/internal/core TemplateCache

// Generate mock for InAppRepository interface from internal/core package.
// This creates MockInAppRepository with methods for all InAppRepository interface methods:
// Insert
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=in_app_repository_mock.go github.com/target/notify-dispatch/internal/core InAppRepository

// Generate mock for DeadLetterPublisher interface from internal/core package.
// This creates MockDeadLetterPublisher with methods for all DeadLetterPublisher interface methods:
// PublishDeadLetter
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dead_letter_publisher_mock.go github.com/target/notify-dispatch/internal/core DeadLetterPublisher

// Generate mock for ChannelDispatcher interface from internal/core package.
// This creates MockChannelDispatcher with methods for all ChannelDispatcher interface methods:
// Channel, Send
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=channel_dispatcher_mock.go github.com/target/notify-dispatch/internal/core ChannelDispatcher

// Generate mock for DispatcherRegistry interface from internal/core package.
// This creates MockDispatcherRegistry with methods for all DispatcherRegistry interface methods:
// Lookup
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatcher_registry_mock.go github.com/target/notify-dispatch/internal/core DispatcherRegistry
