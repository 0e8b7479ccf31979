package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Stage is one position in the fixed question sequence.
type Stage string

const (
	StageFirstIncome    Stage = "FIRST_INCOME"
	StageExpenses       Stage = "EXPENSES"
	StageDebt           Stage = "DEBT"
	StageSavingsPercent Stage = "SAVINGS_PERCENT"
)

// stages is the only order a conversation may move through.
var stages = []Stage{StageFirstIncome, StageExpenses, StageDebt, StageSavingsPercent}

var questions = map[Stage]string{
	StageExpenses:       "How much do you usually spend every month?",
	StageDebt:           "How much debt are you in?",
	StageSavingsPercent: "What percent do you want to put into savings? (I recommend 10-20%)",
}

const (
	msgIncomeFormat  = "Sorry, I don't understand. Please respond with only your income (no letters, no dollar sign)."
	msgNumberFormat  = "Sorry, I don't understand. Please respond with only a number (no dollar sign)."
	msgPercentFormat = "Sorry, I don't understand. Please respond with only a number (no percentage sign)."
	msgOutOfRange    = "That's not right. Please try again"
	msgUnknownStage  = "Sorry, something went wrong! :("
	msgMissingData   = "Sorry, it seems some data is missing!"
)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// Conversation is one dialogue. It is a value: transitions return a new copy
// and never write through the pointers of the one they were given.
type Conversation struct {
	ID        int64
	UserID    int64
	Username  string
	Stage     Stage
	Income    *int64
	Expenses  *int64
	Debt      *int64
	Savings   *int64
	UpdatedAt time.Time
}

// Result is the outcome of HandleMessage. Error is set only when MoveOn is false.
type Result struct {
	MoveOn bool
	Error  string
}

type stageRule struct {
	formatMsg string
	max       int64 // 0 means unbounded
	set       func(c *Conversation, v int64)
}

var rules = map[Stage]stageRule{
	StageFirstIncome:    {formatMsg: msgIncomeFormat, set: func(c *Conversation, v int64) { c.Income = &v }},
	StageExpenses:       {formatMsg: msgNumberFormat, set: func(c *Conversation, v int64) { c.Expenses = &v }},
	StageDebt:           {formatMsg: msgNumberFormat, set: func(c *Conversation, v int64) { c.Debt = &v }},
	StageSavingsPercent: {formatMsg: msgPercentFormat, max: 100, set: func(c *Conversation, v int64) { c.Savings = &v }},
}

// HandleMessage validates message against the current stage and, when it is
// valid, stores it in that stage's field. The stage is not advanced.
func HandleMessage(message string, c Conversation) (Conversation, Result) {
	rule, ok := rules[c.Stage]
	if !ok {
		return c, Result{Error: msgUnknownStage}
	}
	if !digitsOnly.MatchString(message) {
		return c, Result{Error: rule.formatMsg}
	}
	v, err := strconv.ParseInt(message, 10, 64)
	if err != nil || v < 0 || (rule.max > 0 && v > rule.max) {
		return c, Result{Error: msgOutOfRange}
	}
	rule.set(&c, v)
	return c, Result{MoveOn: true}
}

// MoveOn advances to the next stage and returns its question. ok is false,
// and c is returned unchanged, when the current stage is the last one.
func MoveOn(c Conversation) (next Conversation, question string, ok bool) {
	idx := stageIndex(c.Stage)
	if idx < 0 || idx+1 >= len(stages) {
		return c, "", false
	}
	c.Stage = stages[idx+1]
	return c, questions[c.Stage], true
}

func stageIndex(s Stage) int {
	for i, st := range stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Complete reports whether every answer has been collected.
func (c Conversation) Complete() bool {
	return c.Income != nil && c.Expenses != nil && c.Debt != nil && c.Savings != nil
}

// Budget is the monthly breakdown derived from the four answers.
type Budget struct {
	YearlyIncome  float64
	AfterTax      float64
	DebtPayment   float64
	SavingsAmount float64
	Expenses      float64
	Leftover      float64
}

// Feasible reports whether anything is left once everything is paid.
func (b Budget) Feasible() bool { return b.Leftover > 0 }

// Compute applies a flat 25% tax and caps debt service at 35% of after-tax income.
func Compute(income, expenses, debt, savingsPercent int64) Budget {
	afterTax := float64(income) * 0.75
	debtPayment := min(float64(debt), afterTax*0.35)
	savings := afterTax * (float64(savingsPercent) / 100)
	return Budget{
		YearlyIncome:  float64(income) * 12,
		AfterTax:      afterTax,
		DebtPayment:   debtPayment,
		SavingsAmount: savings,
		Expenses:      float64(expenses),
		Leftover:      afterTax - float64(expenses) - debtPayment - savings,
	}
}

// Finish renders the final report, or a fixed message if an answer is missing.
func Finish(c Conversation) string {
	if !c.Complete() {
		return msgMissingData
	}
	b := Compute(*c.Income, *c.Expenses, *c.Debt, *c.Savings)
	feasible := "no"
	if b.Feasible() {
		feasible = "yes"
	}
	return fmt.Sprintf("Alright, here you go:\n"+
		"Yearly income: $%s\n"+
		"Money after taxes (monthly): ~$%s\n"+
		"Money to save (monthly): $%s\n"+
		"Money spent on expenses (monthly): $%s\n"+
		"Money spent on debt (monthly): $%s\n"+
		"Overall, you have $%s left over for yourself!\n"+
		"Achievable: %s",
		num(b.YearlyIncome), num(b.AfterTax), num(b.SavingsAmount),
		num(b.Expenses), num(b.DebtPayment), num(b.Leftover), feasible)
}

// num prints the shortest decimal that round-trips, with no rounding applied.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Greeting opens a conversation and asks the first question.
func Greeting(username string) string {
	return fmt.Sprintf("Hello, %s! To get started, please tell me your monthly income.", username)
}
