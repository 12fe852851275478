package console

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/shopdesk/internal/session"
)

func TestLogin(t *testing.T) {
	c, api, sess := newTestConsole()
	api.on("POST", "/auth/login", "tok.en.value")

	out, err := c.Auth.Login(context.Background(), " admin@shop.test ", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "products", out.Next)
	assert.Equal(t, "tok.en.value", sess.snap.Token)
	assert.Equal(t, credentials{Email: "admin@shop.test", Password: "admin123"}, api.body("POST", "/auth/login"))
}

func TestLoginFailures(t *testing.T) {
	c, api, sess := newTestConsole()

	_, err := c.Auth.Login(context.Background(), "", "")
	var serr *SubmitError
	require.True(t, errors.As(err, &serr))
	assert.Len(t, serr.Fields, 2)

	api.fail("POST", "/auth/login", http.StatusUnauthorized, ``)
	_, err = c.Auth.Login(context.Background(), "a@b", "x")
	assert.EqualError(t, err, "Login failed. Check credentials.")

	api.on("POST", "/auth/login", "garbage")
	sess.loginErr = session.ErrMalformedToken
	_, err = c.Auth.Login(context.Background(), "a@b", "x")
	assert.ErrorIs(t, err, session.ErrMalformedToken)
}

func TestRegisterForcesCustomerRoleForNonAdmins(t *testing.T) {
	c, api, sess := newTestConsole()
	api.on("POST", "/auth/register", "User registered successfully")

	out, err := c.Auth.Register(context.Background(), RegisterForm{Email: "n@shop.test", Password: "pw", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "login", out.Next)
	assert.Equal(t, 1800*time.Millisecond, out.Delay)
	assert.Equal(t, RoleCustomer, api.body("POST", "/auth/register").(registerRequest).Role)

	sess.snap = session.Snapshot{Token: "t", IsAdmin: true}
	_, err = c.Auth.Register(context.Background(), RegisterForm{Email: "n2@shop.test", Password: "pw", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", api.body("POST", "/auth/register").(registerRequest).Role)
}

func TestRegisterServerMessage(t *testing.T) {
	c, api, _ := newTestConsole()
	api.fail("POST", "/auth/register", http.StatusBadRequest, `"Email already registered"`)

	_, err := c.Auth.Register(context.Background(), RegisterForm{Email: "n@shop.test", Password: "pw"})
	assert.EqualError(t, err, "Email already registered")
}

func TestLogout(t *testing.T) {
	c, _, sess := newTestConsole()
	sess.snap = session.Snapshot{Token: "t"}

	out, err := c.Auth.Logout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "login", out.Next)
	assert.False(t, c.Auth.WhoAmI().HasToken())
}

func TestOrders(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/orders/my", `[]`)
	api.fail("GET", "/api/orders/all", http.StatusForbidden, ``)
	api.on("PUT", "/api/orders/3/status?status=SHIPPED", `{"orderId":3,"status":"SHIPPED"}`)

	assert.Equal(t, Empty, c.Orders.Mine(context.Background()).State)
	assert.Equal(t, "Access denied or order sync failed", c.Orders.All(context.Background()).Err)

	order, _, err := c.Orders.UpdateStatus(context.Background(), 3, "shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, order.Status)

	_, _, err = c.Orders.UpdateStatus(context.Background(), 3, "LOST")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status must be one of")
}

func TestReviews(t *testing.T) {
	c, api, _ := newTestConsole()
	api.on("GET", "/api/reviews/4", `[{"rating":5,"comment":"great","userEmail":"c@shop.test"}]`)
	api.on("POST", "/api/reviews", "Review added")

	v := c.Reviews.List(context.Background(), 4)
	require.Equal(t, Populated, v.State)
	assert.Equal(t, "great", v.Data[0].Comment)

	assert.Equal(t, "Failed to fetch reviews. Check Product ID.", c.Reviews.List(context.Background(), 9).Err)
	assert.Equal(t, "Failed to fetch reviews. Check Product ID.", c.Reviews.List(context.Background(), 0).Err)

	_, err := c.Reviews.Add(context.Background(), ReviewForm{ProductID: 4, Rating: 6, Comment: " "})
	var serr *SubmitError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Rating must be between 1 and 5", serr.Fields["rating"])
	assert.Equal(t, "Comment is required", serr.Fields["comment"])

	_, err = c.Reviews.Add(context.Background(), ReviewForm{ProductID: 4, Rating: 5, Comment: "ok"})
	require.NoError(t, err)
}
