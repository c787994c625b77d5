// Package mocks holds gomock doubles for the repository and auth interfaces.
//
// Regenerate after interface changes with:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=user_repository_mock.go github.com/armada-rental/rental-service/internal/repository UserRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=booking_repository_mock.go github.com/armada-rental/rental-service/internal/repository BookingRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=revocation_list_mock.go github.com/armada-rental/rental-service/internal/auth RevocationList
