// Package helpers provides test utility functions for the SipMate API.
//
// # JWT Helpers
//
// Tokens are signed by the same service the auth middleware validates with:
//
//	svc := helpers.NewTestJWTService(t)
//	h := helpers.NewJWTHelper(svc)
//	token := h.GenerateToken(t, user)
//
// # Requests
//
//	rec := helpers.NewRequest(t, "PUT", "/v1/saved-wines/w1").
//	    WithAuth(h, user).
//	    WithBody(map[string]any{"rating": 5}).
//	    Do(mux)
//
// # Assertion Helpers
//
//	helpers.AssertStatus(t, rec, http.StatusOK)
//	helpers.AssertValidationError(t, rec, "rating")
//	helpers.AssertRecordExists(t, db, "post", post.ID)
//	n := helpers.CountWhere(t, db, "comment", "post", post.ID)
package helpers
