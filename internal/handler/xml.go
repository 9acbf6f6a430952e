package handler

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/faucetdb/acctd/internal/model"
	"github.com/faucetdb/acctd/internal/service"
)

const xmlHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n"

// Replies are rendered as text so the documents match byte for byte what
// existing clients parse, including the self-closing <success/>.
func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, xmlHeader+body)
}

func writeAccountID(w http.ResponseWriter, id int64) {
	writeXML(w, fmt.Sprintf("<account_out>\n    <success/>\n    <id>%d</id>\n</account_out>\n", id))
}

func writeAuthenticator(w http.ResponseWriter, auth string) {
	writeXML(w, fmt.Sprintf("<account_out>\n    <authenticator>%s</authenticator>\n</account_out>\n",
		html.EscapeString(auth)))
}

func writeLoginToken(w http.ResponseWriter, weakAuth, userName string) {
	writeXML(w, fmt.Sprintf("<login_token_reply>\n    <weak_auth>%s</weak_auth>\n    <user_name>%s</user_name>\n</login_token_reply>\n",
		html.EscapeString(weakAuth), html.EscapeString(userName)))
}

func writeRPCError(w http.ResponseWriter, num int, msg string) {
	writeXML(w, fmt.Sprintf("<error>\n    <error_num>%d</error_num>\n    <error_msg>%s</error_msg>\n</error>\n",
		num, html.EscapeString(msg)))
}

// errorReply maps a lookup failure to its error number and message.
// BadUserName and BadPassword share a message so callers cannot tell which
// half of the credential was wrong.
func errorReply(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return model.ErrNumDBNotFound, "not found"
	case errors.Is(err, service.ErrBadUserName):
		return model.ErrNumBadUserName, "invalid credentials"
	case errors.Is(err, service.ErrBadPassword):
		return model.ErrNumBadPasswd, "invalid credentials"
	case errors.Is(err, service.ErrBadToken):
		return model.ErrNumGeneric, "bad token"
	case errors.Is(err, service.ErrTokenExpired):
		return model.ErrNumGeneric, "token timed out"
	case errors.Is(err, service.ErrCreationFailed):
		return model.ErrNumGeneric, "user record creation failed"
	default:
		return model.ErrNumDBCantConn, "database unavailable"
	}
}
