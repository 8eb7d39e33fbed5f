package arbor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const loginPage = `
	<html><body>
		<form action="/auth/login">
			<input type="hidden" name="_token" value="tok123">
			<input type="email" name="email">
			<input type="password" name="password">
		</form>
	</body></html>`

const guardianShell = `
	<html><body><main><h2>Guardian Dashboard</h2></main></body></html>`

func testClient(t *testing.T, url string) *Client {
	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl: url,
		Contact: "mailto:parent@example.org",
	})
	require.NoError(t, err)
	return client
}

func TestLoginGuardian(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, loginPage)
		case r.URL.Path == "/auth/login":
			require.NoError(t, r.ParseForm())
			form = map[string]string{
				"_token":   r.PostFormValue("_token"),
				"email":    r.PostFormValue("email"),
				"password": r.PostFormValue("password"),
			}
			fmt.Fprint(w, guardianShell)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	err := client.LoginGuardian(context.Background(), Credentials{
		Email:    "parent@example.org",
		Password: "hunter2",
	})
	require.NoError(t, err)
	require.Equal(t, "tok123", form["_token"])
	require.Equal(t, "parent@example.org", form["email"])
	require.Equal(t, "hunter2", form["password"])
}

func TestLoginGuardianRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// bouncing back to the form means the credentials were wrong
		fmt.Fprint(w, loginPage)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	err := client.LoginGuardian(context.Background(), Credentials{
		Email:    "parent@example.org",
		Password: "wrong",
	})
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestLoginGuardianMaintenance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>This site is undergoing maintenance.</body></html>`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	err := client.LoginGuardian(context.Background(), Credentials{
		Email:    "parent@example.org",
		Password: "hunter2",
	})
	require.ErrorIs(t, err, ErrMaintenance)
}

func TestLoginGuardianDOBVerification(t *testing.T) {
	var dob string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, loginPage)
		case r.URL.Path == "/auth/login":
			fmt.Fprint(w, `
				<html><body>
					<form action="/auth/verify">
						<input type="hidden" name="_token" value="tok456">
						<input name="dob" placeholder="dd/mm/yyyy">
					</form>
				</body></html>`)
		case r.URL.Path == "/auth/verify":
			require.NoError(t, r.ParseForm())
			dob = r.PostFormValue("dob")
			fmt.Fprint(w, guardianShell)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	err := client.LoginGuardian(context.Background(), Credentials{
		Email:    "parent@example.org",
		Password: "hunter2",
		ChildDOB: "01/09/2015",
	})
	require.NoError(t, err)
	require.Equal(t, "01/09/2015", dob)
}

func TestLoginGuardianDOBNotConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginPage)
			return
		}
		fmt.Fprint(w, `<html><body><form><input name="dob"></form></body></html>`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	err := client.LoginGuardian(context.Background(), Credentials{
		Email:    "parent@example.org",
		Password: "hunter2",
	})
	require.ErrorIs(t, err, ErrLoginFailed)
}
