package models

// Database schema overview:
// 1. interviewers - AI personas; one row carries is_default for sessions created without one
// 2. interview_templates - question lists (raw jsonb, normalized on read), duration, persona instruction
// 3. interview_sessions - lifecycle, provider call linkage, question cursor and the embedded analysis_* columns
// 4. interview_turns - append-only audit of every prompt handed to the voice provider
