package level

import (
	"github.com/stuarthighley/doomrender/fixed"
)

type binThing struct {
	X       int16
	Y       int16
	Angle   int16
	Type    int16
	Options int16
}

// Thing is a map thing as stored in the THINGS lump.
type Thing struct {
	X, Y            fixed.Fixed
	Angle           fixed.Angle
	Type            int
	Skill1and2      bool
	Skill3          bool
	Skill4and5      bool
	Ambush          bool
	MultiplayerOnly bool
}

// Mobj flags.
const (
	MFSpecial      = 0x1
	MFSolid        = 0x2
	MFShootable    = 0x4
	MFNoSector     = 0x8 // not linked into a sector thing list, so invisible
	MFNoBlockmap   = 0x10
	MFAmbush       = 0x20
	MFSpawnCeiling = 0x100
	MFNoGravity    = 0x200
	MFShadow       = 0x40000 // drawn with the fuzz effect
	MFCountKill    = 0x400000
	MFTranslation  = 0xc000000 // player colour remap selector
	MFTransShift   = 26
)

// FrameFullBright is or'ed into a frame number to skip sector lighting.
const FrameFullBright = 0x8000

// Mobj is a spawned map object. Only the fields the renderer and the sight
// check read are kept.
type Mobj struct {
	X, Y, Z  fixed.Fixed
	Angle    fixed.Angle
	Type     int // editor number
	Info     *ThingInfo
	Sprite   int // resolved sprite number, -1 if the sprite is missing
	Frame    int
	Flags    int
	Radius   fixed.Fixed
	Height   fixed.Fixed
	FloorZ   fixed.Fixed
	CeilingZ fixed.Fixed

	Subsector int

	// Sector thing list links.
	SNext, SPrev *Mobj
	// Blockmap cell links.
	BNext, BPrev *Mobj
}

// ThingInfo describes what an editor number spawns.
type ThingInfo struct {
	DoomEdNum int
	Sprite    string
	Frame     int
	Radius    int
	Height    int
	Flags     int
}

// Thing types that are not spawned as mobjs.
const (
	ThingPlayer1Start    = 1
	ThingPlayer4Start    = 4
	ThingDeathmatchStart = 11
)

var thingInfos = map[int]*ThingInfo{}

func init() {
	for i := range thingInfoTable {
		thingInfos[thingInfoTable[i].DoomEdNum] = &thingInfoTable[i]
	}
}

// LookupThing returns the info for an editor number.
func LookupThing(doomEdNum int) (*ThingInfo, bool) {
	info, ok := thingInfos[doomEdNum]
	return info, ok
}

var thingInfoTable = []ThingInfo{
	{1, "PLAY", 0, 16, 56, MFSolid | MFShootable},
	{3004, "POSS", 0, 20, 56, MFSolid | MFShootable | MFCountKill},
	{9, "SPOS", 0, 20, 56, MFSolid | MFShootable | MFCountKill},
	{3001, "TROO", 0, 20, 56, MFSolid | MFShootable | MFCountKill},
	{3002, "SARG", 0, 30, 56, MFSolid | MFShootable | MFCountKill},
	{58, "SARG", 0, 30, 56, MFSolid | MFShootable | MFShadow | MFCountKill},
	{3005, "HEAD", 0, 31, 56, MFSolid | MFShootable | MFNoGravity | MFCountKill},
	{3003, "BOSS", 0, 24, 64, MFSolid | MFShootable | MFCountKill},
	{3006, "SKUL", 1 | FrameFullBright, 16, 56, MFSolid | MFShootable | MFNoGravity},
	{2035, "BAR1", 0, 10, 42, MFSolid | MFShootable},
	{2001, "SHOT", 0, 20, 16, MFSpecial},
	{2007, "CLIP", 0, 20, 16, MFSpecial},
	{2048, "AMMO", 0, 20, 16, MFSpecial},
	{2011, "STIM", 0, 20, 16, MFSpecial},
	{2012, "MEDI", 0, 20, 16, MFSpecial},
	{2014, "BON1", 0, 20, 16, MFSpecial},
	{2015, "BON2", 0, 20, 16, MFSpecial},
	{2018, "ARM1", 0, 20, 16, MFSpecial},
	{2019, "ARM2", 1 | FrameFullBright, 20, 16, MFSpecial},
	{5, "BKEY", 0, 20, 16, MFSpecial},
	{6, "YKEY", 0, 20, 16, MFSpecial},
	{13, "RKEY", 0, 20, 16, MFSpecial},
	{2028, "COLU", FrameFullBright, 16, 16, MFSolid},
	{34, "CAND", FrameFullBright, 20, 16, 0},
	{35, "CBRA", FrameFullBright, 16, 16, MFSolid},
	{48, "ELEC", 0, 16, 16, MFSolid},
	{2024, "PINS", FrameFullBright, 20, 16, MFSpecial | MFCountKill},
	{14, "TFOG", 0, 20, 16, MFNoBlockmap | MFNoGravity},
	{10, "PLAY", 22, 20, 16, 0},
}

// Blockmap geometry.
const (
	MapBlockUnits = 128
	MapBlockShift = fixed.FracBits + 7
	MapBToFrac    = MapBlockShift - fixed.FracBits
	// MaxRadius is for precalculated sector block boxes; the spider demon is
	// larger, but there are no moving sectors nearby.
	MaxRadius = 32 * fixed.FracUnit
)

// SetThingPosition links mo into the subsector, sector thing list and
// blockmap cell under its position.
func (s *State) SetThingPosition(mo *Mobj) {
	mo.Subsector = s.PointInSubsector(mo.X, mo.Y)
	sec := &s.Sectors[s.Subsectors[mo.Subsector].Sector]

	if mo.Flags&MFNoSector == 0 {
		mo.SPrev = nil
		mo.SNext = sec.ThingList
		if sec.ThingList != nil {
			sec.ThingList.SPrev = mo
		}
		sec.ThingList = mo
	}

	if mo.Flags&MFNoBlockmap == 0 {
		if cell, ok := s.BlockMap.cell(mo.X, mo.Y); ok {
			mo.BPrev = nil
			mo.BNext = s.BlockMap.Links[cell]
			if mo.BNext != nil {
				mo.BNext.BPrev = mo
			}
			s.BlockMap.Links[cell] = mo
		} else {
			mo.BNext, mo.BPrev = nil, nil
		}
	}
}

// UnsetThingPosition removes mo from the links SetThingPosition made.
func (s *State) UnsetThingPosition(mo *Mobj) {
	if mo.Flags&MFNoSector == 0 {
		if mo.SNext != nil {
			mo.SNext.SPrev = mo.SPrev
		}
		if mo.SPrev != nil {
			mo.SPrev.SNext = mo.SNext
		} else {
			sec := &s.Sectors[s.Subsectors[mo.Subsector].Sector]
			sec.ThingList = mo.SNext
		}
		mo.SNext, mo.SPrev = nil, nil
	}

	if mo.Flags&MFNoBlockmap == 0 {
		if mo.BNext != nil {
			mo.BNext.BPrev = mo.BPrev
		}
		if mo.BPrev != nil {
			mo.BPrev.BNext = mo.BNext
		} else if cell, ok := s.BlockMap.cell(mo.X, mo.Y); ok && s.BlockMap.Links[cell] == mo {
			s.BlockMap.Links[cell] = mo.BNext
		}
		mo.BNext, mo.BPrev = nil, nil
	}
}

// skillBits returns the thing option bit for a skill level.
func skillBits(skill int) int {
	switch {
	case skill <= 2:
		return 1
	case skill == 3:
		return 2
	}
	return 4
}

// spawnThings creates a mobj for every thing present at the given skill.
func (s *State) spawnThings(skill int, sprites func(name string) int) error {
	bit := skillBits(skill)
	for i := range s.Things {
		t := &s.Things[i]
		switch {
		case t.Type == ThingDeathmatchStart:
			continue
		case t.Type > ThingPlayer1Start && t.Type <= ThingPlayer4Start:
			continue
		case t.Type != ThingPlayer1Start && t.MultiplayerOnly:
			continue
		}
		if t.Type != ThingPlayer1Start {
			var opts int
			if t.Skill1and2 {
				opts |= 1
			}
			if t.Skill3 {
				opts |= 2
			}
			if t.Skill4and5 {
				opts |= 4
			}
			if opts&bit == 0 {
				continue
			}
		}
		info, ok := LookupThing(t.Type)
		if !ok {
			logger.Printf("Warning: thing %v: unknown type %v at (%v, %v)", i, t.Type, t.X.Int(), t.Y.Int())
			continue
		}
		mo := &Mobj{
			X:      t.X,
			Y:      t.Y,
			Angle:  t.Angle,
			Type:   t.Type,
			Info:   info,
			Sprite: sprites(info.Sprite),
			Frame:  info.Frame,
			Flags:  info.Flags,
			Radius: fixed.FromInt(info.Radius),
			Height: fixed.FromInt(info.Height),
		}
		if t.Ambush {
			mo.Flags |= MFAmbush
		}
		s.SetThingPosition(mo)
		sec := &s.Sectors[s.Subsectors[mo.Subsector].Sector]
		mo.FloorZ = sec.FloorHeight
		mo.CeilingZ = sec.CeilingHeight
		if mo.Flags&MFSpawnCeiling != 0 {
			mo.Z = mo.CeilingZ - mo.Height
		} else {
			mo.Z = mo.FloorZ
		}
		if t.Type == ThingPlayer1Start {
			if s.Player != nil {
				logger.Printf("Warning: thing %v: second player 1 start ignored", i)
				s.UnsetThingPosition(mo)
				continue
			}
			s.Player = mo
		}
		s.Mobjs = append(s.Mobjs, mo)
	}
	if s.Player == nil {
		return ErrNoPlayerStart
	}
	logger.Printf("Spawned %v mobjs", len(s.Mobjs))
	return nil
}
