package actions

import "pacebot/internal/task/registry"

type Kind = registry.Kind

const (
	KindSpam        Kind = "spam"
	KindImageSpam   Kind = "imagespam"
	KindDPChange    Kind = "dpchange"
	KindAutoRename  Kind = "autorename"
	KindUltraRename Kind = "ultrarnm"
	KindPlaylist    Kind = "pfp_playlist"
	KindSpnc        Kind = "spnc"
	KindAllRename   Kind = "all_rename"
	KindAllPFP      Kind = "all_pfp"
)

// Kinds lists every action kind in display order.
var Kinds = []Kind{
	KindSpam, KindImageSpam, KindDPChange, KindAutoRename, KindUltraRename,
	KindPlaylist, KindSpnc, KindAllRename, KindAllPFP,
}

// PhotoKinds are the kinds that change the chat photo.
var PhotoKinds = []Kind{KindDPChange, KindPlaylist, KindAllPFP}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}
