package lapdm

// Mode selects which side of the air interface a Channel/Entity represents.
// It governs C/R polarity only (§6 "Modes"); everything else in the state
// machine is symmetric between MS and BTS.
type Mode uint8

const (
	ModeMS Mode = iota
	ModeBTS
)

func (m Mode) String() string {
	if m == ModeBTS {
		return "BTS"
	}
	return "MS"
}

// C/R bit values, TS 04.06 §3.3.2.
const (
	crMS2BSCmd  = 0
	crMS2BSResp = 1
	crBS2MSCmd  = 1
	crBS2MSResp = 0
)

// CRPolarity is the command/response bit to use for frames sent to the
// peer (Loc2Rem) and the expected bit on frames received from the peer
// (Rem2Loc), for one direction of traffic (command or response).
type CRPolarity struct {
	Loc2RemCmd  uint8
	Loc2RemResp uint8
	Rem2LocCmd  uint8
	Rem2LocResp uint8
}

// PolarityForMode returns the C/R polarity table for the given mode,
// mirroring lapdm_entity_set_mode in the original implementation.
func PolarityForMode(mode Mode) CRPolarity {
	if mode == ModeBTS {
		return CRPolarity{
			Loc2RemCmd:  crBS2MSCmd,
			Loc2RemResp: crBS2MSResp,
			Rem2LocCmd:  crMS2BSCmd,
			Rem2LocResp: crMS2BSResp,
		}
	}
	return CRPolarity{
		Loc2RemCmd:  crMS2BSCmd,
		Loc2RemResp: crMS2BSResp,
		Rem2LocCmd:  crBS2MSCmd,
		Rem2LocResp: crBS2MSResp,
	}
}

// ChannelType selects the N201/N200 parameter row a Datalink uses (§6, §9
// Open Question (c)). It is set on the Datalink's message context whenever
// L3 establishes, resumes or reconnects a link.
type ChannelType uint8

const (
	ChannelSDCCH ChannelType = iota
	ChannelFACCHFull
	ChannelFACCHHalf
	ChannelFACCHEnhancedFull // AMR/EFR full-rate FACCH, N200_TR_EFACCH_FR=48 (original_source/lapdm.c)
	ChannelSACCH
)

func (c ChannelType) String() string {
	switch c {
	case ChannelSDCCH:
		return "SDCCH"
	case ChannelFACCHFull:
		return "FACCH/F"
	case ChannelFACCHHalf:
		return "FACCH/H"
	case ChannelFACCHEnhancedFull:
		return "FACCH/F-EFR"
	case ChannelSACCH:
		return "SACCH"
	default:
		return "?"
	}
}

// ReleaseMode distinguishes a normal (DISC-mediated) release from a local,
// immediate one (§4.1 "L3 REL.req (local=1)").
type ReleaseMode uint8

const (
	ReleaseNormal ReleaseMode = iota
	ReleaseLocal
)

// MDLErrorCause enumerates the MDL-ERROR-INDICATION cause codes of §6.
type MDLErrorCause uint8

const (
	CauseFrameNotImplemented MDLErrorCause = iota
	CauseUFrameIncorrectParameters
	CauseSFrameIncorrectParameters
	CauseIFrameIncorrectLength
	CauseIFrameIncorrectMBits
	CauseSABMInfoNotAllowed
	CauseUnsolicitedDMResponse
	CauseUnsolicitedDMResponseMF
	CauseUnsolicitedUAResponse
	CauseUnsolicitedSupervisoryResponse
	CauseT200Expired
	CauseSequenceError
)

var mdlErrorCauseNames = map[MDLErrorCause]string{
	CauseFrameNotImplemented:            "FRM_UNIMPL",
	CauseUFrameIncorrectParameters:      "UFRM_INC_PARAM",
	CauseSFrameIncorrectParameters:      "SFRM_INC_PARAM",
	CauseIFrameIncorrectLength:          "IFRM_INC_LEN",
	CauseIFrameIncorrectMBits:           "IFRM_INC_MBITS",
	CauseSABMInfoNotAllowed:             "SABM_INFO_NOTALL",
	CauseUnsolicitedDMResponse:          "UNSOL_DM_RESP",
	CauseUnsolicitedDMResponseMF:        "UNSOL_DM_RESP_MF",
	CauseUnsolicitedUAResponse:          "UNSOL_UA_RESP",
	CauseUnsolicitedSupervisoryResponse: "UNSOL_SPRV_RESP",
	CauseT200Expired:                    "T200_EXPIRED",
	CauseSequenceError:                  "SEQ_ERR",
}

func (c MDLErrorCause) String() string {
	if name, ok := mdlErrorCauseNames[c]; ok {
		return name
	}
	return "UNKNOWN_CAUSE"
}

// EntityFlags are per-Entity runtime-settable behavior switches (§6 "Flags").
type EntityFlags struct {
	// PollingOnly: never emit a frame spontaneously, always queue it for
	// L1 to request with PH-RTS.ind.
	PollingOnly bool
	// EmptyFrame: emit a PH-EMPTY_FRAME.req when L1 asks for a frame and
	// nothing is queued.
	EmptyFrame bool
}
