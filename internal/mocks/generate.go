// Package mocks provides gomock mocks for the export ports and repositories.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	server := mocks.NewMockExportServer(ctrl)
//	server.EXPECT().SubmitExport(gomock.Any(), gomock.Any()).Return(&model.SubmitResponse{Success: true, DownloadID: "abc"}, nil)
package mocks

// ExportServer: SubmitExport, SubmitMultimedia, QueryStatus, RequestCompletionEmail
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=export_server_mock.go github.com/target/mmk-export/internal/ports ExportServer

// EmailRequester: RequestCompletionEmail
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=email_requester_mock.go github.com/target/mmk-export/internal/ports EmailRequester

// SnapshotStore: Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=snapshot_store_mock.go github.com/target/mmk-export/internal/ports SnapshotStore

// ExportHistoryRepository: Create, Finish, GetByDownloadID, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=export_history_repository_mock.go github.com/target/mmk-export/internal/core ExportHistoryRepository

// CacheRepository: Get, Set, Delete, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/mmk-export/internal/core CacheRepository
