package base

// DlmsVersion is the DLMS protocol version negotiated in InitiateRequest.
const DlmsVersion = 0x06

const (
	VAANameLN = 0x0007
	VAANameSN = 0xFA00
)

type Authentication byte

const (
	AuthenticationNone             Authentication = 0
	AuthenticationLow              Authentication = 1
	AuthenticationHighManufacturer Authentication = 2
	AuthenticationHighMD5          Authentication = 3
	AuthenticationHighSHA1         Authentication = 4
	AuthenticationHighGMAC         Authentication = 5
	AuthenticationHighSHA256       Authentication = 6
	AuthenticationHighECDSA        Authentication = 7
)

type DlmsSecurity byte

const (
	SecurityNone           DlmsSecurity = 0
	SecurityAuthentication DlmsSecurity = 0x10
	SecurityEncryption     DlmsSecurity = 0x20
)

type AssociationResult byte

const (
	AssociationResultAccepted          AssociationResult = 0
	AssociationResultPermanentRejected AssociationResult = 1
	AssociationResultTransientRejected AssociationResult = 2
)

type SourceDiagnostic byte

const (
	SourceDiagnosticNone                                       SourceDiagnostic = 0
	SourceDiagnosticNoReasonGiven                              SourceDiagnostic = 1
	SourceDiagnosticApplicationContextNameNotSupported         SourceDiagnostic = 2
	SourceDiagnosticCallingAPTitleNotRecognized                SourceDiagnostic = 3
	SourceDiagnosticCallingAPInvocationIdentifierNotRecognized SourceDiagnostic = 4
	SourceDiagnosticCallingAEQualifierNotRecognized            SourceDiagnostic = 5
	SourceDiagnosticCallingAEInvocationIdentifierNotRecognized SourceDiagnostic = 6
	SourceDiagnosticCalledAPTitleNotRecognized                 SourceDiagnostic = 7
	SourceDiagnosticCalledAPInvocationIdentifierNotRecognized  SourceDiagnostic = 8
	SourceDiagnosticCalledAEQualifierNotRecognized             SourceDiagnostic = 9
	SourceDiagnosticCalledAEInvocationIdentifierNotRecognized  SourceDiagnostic = 10
	SourceDiagnosticAuthenticationMechanismNameNotRecognized   SourceDiagnostic = 11
	SourceDiagnosticAuthenticationMechanismNameRequired        SourceDiagnostic = 12
	SourceDiagnosticAuthenticationFailure                      SourceDiagnostic = 13
	SourceDiagnosticAuthenticationRequired                     SourceDiagnostic = 14
)

type ApplicationContext byte

const (
	ApplicationContextLNNoCiphering ApplicationContext = 1
	ApplicationContextSNNoCiphering ApplicationContext = 2
	ApplicationContextLNCiphering   ApplicationContext = 3
	ApplicationContextSNCiphering   ApplicationContext = 4
)

const (
	PduTypeProtocolVersion            = 0
	PduTypeApplicationContextName     = 1
	PduTypeCalledAPTitle              = 2
	PduTypeCalledAEQualifier          = 3
	PduTypeCalledAPInvocationID       = 4
	PduTypeCalledAEInvocationID       = 5
	PduTypeCallingAPTitle             = 6
	PduTypeCallingAEQualifier         = 7
	PduTypeCallingAPInvocationID      = 8
	PduTypeCallingAEInvocationID      = 9
	PduTypeSenderAcseRequirements     = 10
	PduTypeMechanismName              = 11
	PduTypeCallingAuthenticationValue = 12
	PduTypeImplementationInformation  = 29
	PduTypeUserInformation            = 30
)

const (
	BERTypeContext     = 0x80
	BERTypeApplication = 0x40
	BERTypeConstructed = 0x20
)

// Conformance block, 24 bits, BER-encoded as [APPLICATION 31] IMPLICIT BIT STRING.
const (
	ConformanceGeneralProtection    = 0b010000000000000000000000
	ConformanceGeneralBlockTransfer = 0b001000000000000000000000
	ConformanceRead                 = 0b000100000000000000000000
	ConformanceWrite                = 0b000010000000000000000000
	ConformanceUnconfirmedWrite     = 0b000001000000000000000000

	ConformanceAttribute0SupportedWithSet = 0b000000001000000000000000
	ConformancePriorityMgmtSupported      = 0b000000000100000000000000
	ConformanceAttribute0SupportedWithGet = 0b000000000010000000000000
	ConformanceBlockTransferWithGetOrRead = 0b000000000001000000000000

	ConformanceBlockTransferWithSetOrWrite = 0b000000000000100000000000
	ConformanceBlockTransferWithAction     = 0b000000000000010000000000
	ConformanceMultipleReferences          = 0b000000000000001000000000
	ConformanceInformationReport           = 0b000000000000000100000000

	ConformanceDataNotification   = 0b000000000000000010000000
	ConformanceAccess             = 0b000000000000000001000000
	ConformanceParametrizedAccess = 0b000000000000000000100000
	ConformanceGet                = 0b000000000000000000010000

	ConformanceSet               = 0b000000000000000000001000
	ConformanceSelectiveAccess   = 0b000000000000000000000100
	ConformanceEventNotification = 0b000000000000000000000010
	ConformanceAction            = 0b000000000000000000000001
)

type ReleaseRequestReason byte

const (
	ReleaseRequestReasonNormal      ReleaseRequestReason = 0
	ReleaseRequestReasonUrgent      ReleaseRequestReason = 1
	ReleaseRequestReasonUserDefined ReleaseRequestReason = 30
)
