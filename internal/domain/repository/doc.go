// Package repository define las entidades y los contratos de almacenamiento
// que consumen el purgador y el servicio de cuentas.
//
// Las implementaciones concretas viven en internal/store/adapters/ y siempre
// se obtienen ligadas a una transacción (ver store.Tx):
//
//	┌─────────────────────────────────────────────────────┐
//	│        purge.Purger / account.Service               │
//	└─────────────────────────────────────────────────────┘
//	                        │  store.DataSource.Execute(intent)
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│  AccountRepository, NoteRepository, ...             │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┐
//	         ▼              ▼              ▼
//	┌─────────────┐  ┌─────────────┐  ┌─────────────┐
//	│  adapters/  │  │  adapters/  │  │  adapters/  │
//	│     pg      │  │    mysql    │  │   memory    │
//	└─────────────┘  └─────────────┘  └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los Delete* retornan filas eliminadas y son no-op (0, nil) si no hay filas
//   - Errores de dominio están en errors.go
package repository
