// Package acse implements the Association Control Service Element
// encoding DLMS uses to open and release an application association:
// AARQ/AARE/RLRQ/RLRE (§4.8).
package acse

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/ber"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

const (
	TagAARQ byte = 0x60
	TagAARE byte = 0x61
	TagRLRQ byte = 0x62
	TagRLRE byte = 0x63
)

const (
	tagApplicationContextName     = ber.TypeContext | ber.TypeConstructed | 1
	tagCalledAPTitle              = ber.TypeContext | ber.TypeConstructed | 2
	tagCallingAPTitle             = ber.TypeContext | ber.TypeConstructed | 6
	tagSenderAcseRequirements     = ber.TypeContext | 10
	tagMechanismName              = ber.TypeContext | 11
	tagCallingAuthenticationValue = ber.TypeContext | ber.TypeConstructed | 12
	tagUserInformation            = ber.TypeContext | ber.TypeConstructed | 30

	tagAssociationResult     = ber.TypeContext | ber.TypeConstructed | 2
	tagAssociateDiagnostic   = ber.TypeContext | ber.TypeConstructed | 3
	tagRespondingAPTitle     = ber.TypeContext | ber.TypeConstructed | 4

	tagReleaseReason = ber.TypeContext | 0
)

// applicationContextPrefix / mechanismNamePrefix hold the encoded first six
// arcs of the standard's 7-arc OIDs (2.16.756.5.8.1.x and 2.16.756.5.8.2.x);
// applicationContextPrefix also starts with the OBJECT IDENTIFIER tag and
// length octets.
var applicationContextPrefix = []byte{0x06, 0x07, 0x60, 0x85, 0x74, 0x05, 0x08, 0x01}
var mechanismNamePrefix = []byte{0x60, 0x85, 0x74, 0x05, 0x08, 0x02}

// AARQ is the client's association request.
type AARQ struct {
	ApplicationContext   base.ApplicationContext
	Authentication       base.Authentication
	CallingAPTitle       []byte // system title, only sent for HLS-GMAC
	AuthenticationValue  []byte // password (LLS) or challenge (HLS)
	UserInformation      []byte // ciphered or plain InitiateRequest
}

func Encode(req *AARQ) ([]byte, error) {
	var content bytes.Buffer

	var ctx bytes.Buffer
	ctx.Write(applicationContextPrefix)
	ctx.WriteByte(byte(req.ApplicationContext))
	ber.PutTag(&content, tagApplicationContextName, ctx.Bytes())

	if req.Authentication == base.AuthenticationHighGMAC && len(req.CallingAPTitle) > 0 {
		ber.PutNestedTag(&content, tagCallingAPTitle, 0x04, req.CallingAPTitle)
	}

	if req.Authentication != base.AuthenticationNone {
		ber.PutTag(&content, tagSenderAcseRequirements, []byte{0x07, 0x80})

		var mech bytes.Buffer
		mech.Write(mechanismNamePrefix)
		mech.WriteByte(byte(req.Authentication))
		ber.PutTag(&content, tagMechanismName, mech.Bytes())

		ber.PutNestedTag(&content, tagCallingAuthenticationValue, 0x80, req.AuthenticationValue)
	}

	if len(req.UserInformation) > 0 {
		ber.PutNestedTag(&content, tagUserInformation, 0x04, req.UserInformation)
	}

	var out bytes.Buffer
	ber.PutTag(&out, TagAARQ, content.Bytes())
	return out.Bytes(), nil
}

func DecodeAARQ(data []byte) (*AARQ, error) {
	if len(data) < 2 || data[0] != TagAARQ {
		return nil, dlmserr.New(dlmserr.Codec, "not an aarq")
	}
	elems, err := ber.DecodeAll(stripOuterTag(data))
	if err != nil {
		return nil, err
	}
	req := &AARQ{}
	for _, e := range elems {
		switch e.Tag {
		case tagApplicationContextName:
			if len(e.Data) != 9 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid application-context-name")
			}
			req.ApplicationContext = base.ApplicationContext(e.Data[8])
		case tagCallingAPTitle:
			inner, err := ber.DecodeAll(e.Data)
			if err != nil || len(inner) != 1 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid calling-ap-title")
			}
			req.CallingAPTitle = append([]byte{}, inner[0].Data...)
		case tagMechanismName:
			if len(e.Data) != 7 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid mechanism-name")
			}
			req.Authentication = base.Authentication(e.Data[6])
		case tagCallingAuthenticationValue:
			inner, err := ber.DecodeAll(e.Data)
			if err != nil || len(inner) != 1 || inner[0].Tag != 0x80 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid calling-authentication-value")
			}
			req.AuthenticationValue = append([]byte{}, inner[0].Data...)
		case tagUserInformation:
			inner, err := ber.DecodeAll(e.Data)
			if err != nil || len(inner) != 1 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid user-information")
			}
			req.UserInformation = append([]byte{}, inner[0].Data...)
		}
	}
	return req, nil
}

// AARE is the server's association response.
type AARE struct {
	ApplicationContext base.ApplicationContext
	Result             base.AssociationResult
	Diagnostic         base.SourceDiagnostic
	RespondingAPTitle  []byte
	UserInformation    []byte
}

func EncodeAARE(resp *AARE) ([]byte, error) {
	var content bytes.Buffer

	var ctx bytes.Buffer
	ctx.Write(applicationContextPrefix)
	ctx.WriteByte(byte(resp.ApplicationContext))
	ber.PutTag(&content, tagApplicationContextName, ctx.Bytes())

	ber.PutNestedTag(&content, tagAssociationResult, 0x02, []byte{byte(resp.Result)})

	var diag bytes.Buffer
	diag.WriteByte(0xa1)
	diag.WriteByte(0x03)
	diag.WriteByte(0x02)
	diag.WriteByte(0x01)
	diag.WriteByte(byte(resp.Diagnostic))
	ber.PutTag(&content, tagAssociateDiagnostic, diag.Bytes())

	if len(resp.RespondingAPTitle) > 0 {
		ber.PutNestedTag(&content, tagRespondingAPTitle, 0x04, resp.RespondingAPTitle)
	}
	if len(resp.UserInformation) > 0 {
		ber.PutNestedTag(&content, tagUserInformation, 0x04, resp.UserInformation)
	}

	var out bytes.Buffer
	ber.PutTag(&out, TagAARE, content.Bytes())
	return out.Bytes(), nil
}

func DecodeAARE(data []byte) (*AARE, error) {
	if len(data) < 2 || data[0] != TagAARE {
		return nil, dlmserr.New(dlmserr.Codec, "not an aare")
	}
	elems, err := ber.DecodeAll(stripOuterTag(data))
	if err != nil {
		return nil, err
	}
	resp := &AARE{}
	for _, e := range elems {
		switch e.Tag {
		case tagApplicationContextName:
			if len(e.Data) != 9 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid application-context-name")
			}
			resp.ApplicationContext = base.ApplicationContext(e.Data[8])
		case tagAssociationResult:
			if len(e.Data) != 3 || e.Data[0] != 0x02 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid association-result")
			}
			resp.Result = base.AssociationResult(e.Data[2])
		case tagAssociateDiagnostic:
			if len(e.Data) != 5 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid associate-source-diagnostic")
			}
			resp.Diagnostic = base.SourceDiagnostic(e.Data[4])
		case tagRespondingAPTitle:
			inner, err := ber.DecodeAll(e.Data)
			if err != nil || len(inner) != 1 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid responding-ap-title")
			}
			resp.RespondingAPTitle = append([]byte{}, inner[0].Data...)
		case tagUserInformation:
			inner, err := ber.DecodeAll(e.Data)
			if err != nil || len(inner) != 1 {
				return nil, dlmserr.New(dlmserr.Codec, "invalid user-information")
			}
			resp.UserInformation = append([]byte{}, inner[0].Data...)
		}
	}
	return resp, nil
}

// RLRQ / RLRE implement the release protocol (§4.8). Absent reason tags
// default to normal.
func EncodeRLRQ(reason base.ReleaseRequestReason) []byte {
	var content bytes.Buffer
	ber.PutNestedTag(&content, tagReleaseReason, 0x02, []byte{byte(reason)})
	var out bytes.Buffer
	ber.PutTag(&out, TagRLRQ, content.Bytes())
	return out.Bytes()
}

func DecodeRLRQ(data []byte) (base.ReleaseRequestReason, error) {
	if len(data) < 2 || data[0] != TagRLRQ {
		return 0, dlmserr.New(dlmserr.Codec, "not an rlrq")
	}
	elems, err := ber.DecodeAll(stripOuterTag(data))
	if err != nil {
		return 0, err
	}
	for _, e := range elems {
		if e.Tag == tagReleaseReason {
			inner, err := ber.DecodeAll(e.Data)
			if err != nil || len(inner) != 1 {
				return 0, dlmserr.New(dlmserr.Codec, "invalid release-request-reason")
			}
			return base.ReleaseRequestReason(inner[0].Data[0]), nil
		}
	}
	return base.ReleaseRequestReasonNormal, nil
}

func EncodeRLRE(reason base.ReleaseRequestReason) []byte {
	var content bytes.Buffer
	ber.PutNestedTag(&content, tagReleaseReason, 0x02, []byte{byte(reason)})
	var out bytes.Buffer
	ber.PutTag(&out, TagRLRE, content.Bytes())
	return out.Bytes()
}

func DecodeRLRE(data []byte) (base.ReleaseRequestReason, error) {
	if len(data) < 2 || data[0] != TagRLRE {
		return 0, dlmserr.New(dlmserr.Codec, "not an rlre")
	}
	elems, err := ber.DecodeAll(stripOuterTag(data))
	if err != nil {
		return 0, err
	}
	for _, e := range elems {
		if e.Tag == tagReleaseReason {
			inner, err := ber.DecodeAll(e.Data)
			if err != nil || len(inner) != 1 {
				return 0, dlmserr.New(dlmserr.Codec, "invalid release-response-reason")
			}
			return base.ReleaseRequestReason(inner[0].Data[0]), nil
		}
	}
	return base.ReleaseRequestReasonNormal, nil
}

func stripOuterTag(data []byte) []byte {
	// tag + BER definite length octet(s): a ciphered UserInformation can
	// push the AARQ/AARE content past 127 bytes, so the long forms matter.
	b := data[1]
	if b < 128 {
		return data[2:]
	}
	n := int(b & 0x7f)
	return data[2+n:]
}
