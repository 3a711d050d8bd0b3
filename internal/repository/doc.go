// Package repository implements SurrealDB data access for the SipMate API.
//
// Each repository wraps a database.Database and owns the SurrealQL for one
// aggregate: accounts, refresh tokens, profiles, wines, saved wines and the
// community feed.
//
// # Conventions
//
//   - Reads that find nothing return (nil, nil); callers decide whether that is an error
//   - Unique index violations surface as database.ErrDuplicate
//   - Record id collisions on CREATE surface as database.ErrRecordExists
//   - Pair associations (saved_wine, post_like) use the pair as the record id
//     and are written with UPSERT, so repeated writes never create duplicates
//   - Raw records are normalized (record ids to strings, datetimes to time.Time)
//     and decoded through a JSON round trip
//
//	repo := NewSavedWineRepository(db)
//	if err := repo.Upsert(ctx, "profile:abc", "w1", details); err != nil {
//	    return err
//	}
package repository
