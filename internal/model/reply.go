package model

import "encoding/xml"

// AccountOut is the reply of lookup_account. Exactly one of Success+ID or
// Authenticator is populated.
type AccountOut struct {
	XMLName       xml.Name  `xml:"account_out"`
	Success       *struct{} `xml:"success"`
	ID            int64     `xml:"id,omitempty"`
	Authenticator string    `xml:"authenticator,omitempty"`
}

// LoginTokenReply is the reply of login_token_lookup.
type LoginTokenReply struct {
	XMLName  xml.Name `xml:"login_token_reply"`
	WeakAuth string   `xml:"weak_auth"`
	UserName string   `xml:"user_name"`
}

// ErrorReply is the error envelope shared by both RPCs.
type ErrorReply struct {
	XMLName xml.Name `xml:"error"`
	Num     int      `xml:"error_num"`
	Msg     string   `xml:"error_msg"`
}

// Error numbers carried in ErrorReply.Num.
const (
	ErrNumGeneric     = -1
	ErrNumDBNotFound  = -136
	ErrNumDBCantConn  = -138
	ErrNumBadUserName = -188
	ErrNumBadPasswd   = -206
)
