// Package mocks provides gomock implementations of the storefront ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	client := mocks.NewMockAuthClient(ctrl)
//	client.EXPECT().GetSession(gomock.Any()).Return(nil, nil)
package mocks

// AuthClient: GetSession, OnAuthStateChange, SignOut, SetSession, SignInWithPassword, SignUp
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_client_mock.go github.com/scolay/storefront/internal/ports AuthClient

// ProfileStore: GetByUserID
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_store_mock.go github.com/scolay/storefront/internal/ports ProfileStore

// LocalStorage: GetItem, SetItem, RemoveItem
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=local_storage_mock.go github.com/scolay/storefront/internal/ports LocalStorage
