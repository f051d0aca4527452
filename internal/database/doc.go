// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── accounts/        # Account persistence used by the auth core
//	└── audit/           # Security audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type built on the shared *gorm.DB:
//
//	db, err := database.NewDatabase("./dancecoach.db")
//
//	accountsRepo := accounts.NewRepository(db.DB)
//	auditRepo := audit.NewRepository(db.DB)
//
//	account, err := accountsRepo.FindAccountByUsername(ctx, "alice")
//
// # Interface Implementations
//
//   - accounts.Repository: implements auth.AccountStore
//   - audit.Repository: backs audit.Service
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Register the entity in Migrate
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
