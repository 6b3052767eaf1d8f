package types

// Client -> Server (websocket frame or POST /rooms/{code}/actions body)
// Every message is { "type": string, ...fields }.
//
// JOIN_ROOM:        userId: string, nickname: string
// JOIN_TEAM:        userId: string, team: "A" | "B" | "SPECTATOR", captain: boolean (host only)
// START_DUEL:       {}
// ROLL_DICE:        team: "A" | "B", value: 1..6 (host only; players get a server roll)
// START_ROUND:      {}
// REVEAL_ANSWER:    index: number, userId?: string (credited with a correct answer)
// ADD_STRIKE:       {}
// RESET_STRIKES:    {}
// END_ROUND:        winnerTeam?: "A" | "B"
// RESET_GAME:       {}
// LOAD_CUSTOM_QUIZ: questions: Question[]
// SET_ACTIVE_TEAM:  team: "A" | "B" | ""
// SET_TEAM_NAMES:   teamA?: string, teamB?: string
// START_TIMER:      seconds: number
// STOP_TIMER:       {}
// DISCONNECT_USER:  userId: string
//
// Players (no PIN) may only send JOIN_TEAM and DISCONNECT_USER for themselves,
// and ROLL_DICE for their own team when they are its captain.

// Server -> Client
// StateSnapshot: see snapshot.go
//
// Error:
//   error: string
