package repo

// Default dataset installed on first run. Three customers across low,
// middle, and high bands, and five bands partitioning [0,1000].

func seedCustomers() []Customer {
	return []Customer{
		{ID: "12345678900", Name: "João Silva", BirthDate: "1990-01-01", Score: 500, MonthlyIncome: 3000, CurrentLimit: 1000},
		{ID: "98765432100", Name: "Maria Oliveira", BirthDate: "1985-05-15", Score: 800, MonthlyIncome: 8000, CurrentLimit: 5000},
		{ID: "11122233344", Name: "Carlos Souza", BirthDate: "2000-12-10", Score: 300, MonthlyIncome: 1500, CurrentLimit: 200},
	}
}

func seedScoreBands() []ScoreBand {
	return []ScoreBand{
		{ScoreMin: 0, ScoreMax: 299, MaxLimit: 0},
		{ScoreMin: 300, ScoreMax: 499, MaxLimit: 500},
		{ScoreMin: 500, ScoreMax: 699, MaxLimit: 2000},
		{ScoreMin: 700, ScoreMax: 899, MaxLimit: 10000},
		{ScoreMin: 900, ScoreMax: 1000, MaxLimit: 50000},
	}
}
