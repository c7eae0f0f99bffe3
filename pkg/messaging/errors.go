package messaging

import "errors"

var (
	ErrUnsupportedChannel  = errors.New("messaging: channel must be sms or whatsapp")
	ErrTemplateNotApproved = errors.New("messaging: template is not approved for this platform")
	ErrRequestFailed       = errors.New("messaging: request failed")
)
