// Package fixtures provides test data factories for the SipMate API.
//
// # Factory Pattern
//
//	f := fixtures.New(tdb.DB)
//
// # Creating Test Data
//
//	user := f.CreateUser(t)                        // taster_<hex>, password testpass123
//	wines := f.SeedCatalog(t)                      // w1..w4
//	post := f.CreatePost(t, user, fixtures.WithWine("w1"))
//	f.Like(t, other, post)
//
// # Customization
//
//	user := f.CreateUser(t, fixtures.WithUsername("wine_lover"))
//	user := f.CreateUser(t, fixtures.WithEmail("real@example.com"))
//
// Users get the synthetic <username>@sipmate.local sign-in email unless one
// is given. Test data is removed with the test database namespace.
package fixtures
