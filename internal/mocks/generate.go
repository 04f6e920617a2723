// Package mocks provides gomock implementations of the core ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	ext := mocks.NewMockExtractor(ctrl)
//	ext.EXPECT().Run(gomock.Any(), gomock.Any()).Return(result, nil)
package mocks

// MockExtractor: Run, Probe
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=extractor_mock.go github.com/target/mediabroker/internal/core Extractor

// MockJobRegistry: Create, Transition, Get, Remove, Snapshot, ListExpired, Stats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_registry_mock.go github.com/target/mediabroker/internal/core JobRegistry
